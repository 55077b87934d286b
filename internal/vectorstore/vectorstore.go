// Package vectorstore holds the scoring helpers shared by the brute-force
// index backends.
package vectorstore

import (
	"math"
	"sort"

	"ragcore/internal/domain"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "documents"

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// norm.
func Cosine(a, b domain.Vector) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores every point against query, drops hits below the threshold and
// returns at most opts.TopK hits in descending score order. Ties keep the
// order of points.
func Rank(points []domain.IndexedPoint, query domain.Vector, opts domain.SearchOptions) []domain.SearchHit {
	hits := make([]domain.SearchHit, 0, len(points))
	for _, p := range points {
		score := Cosine(p.Vector, query)
		if !opts.Accepts(score) {
			continue
		}
		hits = append(hits, domain.SearchHit{Point: p, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if opts.TopK > 0 && len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits
}
