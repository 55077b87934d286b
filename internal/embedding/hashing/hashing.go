// Package hashing implements a deterministic local embedder. Tokens are
// hashed into a fixed number of buckets, so the dimension does not depend on
// the corpus and no preparation pass is needed.
package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"ragcore/internal/domain"
	"ragcore/internal/tokenize"
)

const DefaultDimension = 384

type Embedder struct {
	dimension int
}

var _ domain.Embedder = (*Embedder)(nil)

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Name() string   { return "hashing" }
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one unit vector per text. Text with no terms left after
// stopword removal, such as "the and of." or bare punctuation, embeds to the
// zero vector.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, domain.FromContext(err)
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) embed(text string) domain.Vector {
	tf := make(map[string]int)
	for _, tok := range tokenize.Terms(text) {
		tf[tok]++
	}
	acc := make([]float64, e.dimension)
	for tok, count := range tf {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dimension))
		// the top bit picks a sign so colliding tokens tend to cancel
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		acc[bucket] += sign * (1 + math.Log(float64(count)))
	}
	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	vec := make(domain.Vector, e.dimension)
	if norm == 0 {
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}
