// Package lexical scores passages by term overlap with the query, using the
// Ochiai coefficient |A∩B| / sqrt(|A||B|) over distinct terms.
package lexical

import (
	"context"
	"math"

	"ragcore/internal/domain"
	"ragcore/internal/tokenize"
)

type Reranker struct{}

var _ domain.Reranker = Reranker{}

func New() Reranker { return Reranker{} }

func (Reranker) Name() string { return "lexical" }

func (Reranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	qset := tokenize.Set(query)
	scores := make([]float64, len(passages))
	for i, p := range passages {
		if err := ctx.Err(); err != nil {
			return nil, domain.FromContext(err)
		}
		scores[i] = Ochiai(qset, tokenize.Set(p))
	}
	return scores, nil
}

// Ochiai returns the overlap coefficient of two term sets, 0 when either is
// empty.
func Ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}
