package domain

import (
	"context"
	"fmt"
)

// Embedder maps texts to fixed-dimension vectors. Every returned vector has
// exactly Dimension() components.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([]Vector, error)
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) (Vector, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", ErrEmbeddingFailed, len(vecs))
	}
	return vecs[0], nil
}

// Chunker splits document text into ordered chunk texts.
type Chunker interface {
	Chunk(text string) []string
}

// VectorIndex stores points in a named collection and answers similarity
// queries. EnsureCollection never deletes data; ResetCollection does.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, dim int) error
	ResetCollection(ctx context.Context, dim int) error
	Upsert(ctx context.Context, points []IndexedPoint) error
	Search(ctx context.Context, vec Vector, opts SearchOptions) ([]SearchHit, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Reranker scores (query, passage) pairs. Higher means more relevant.
type Reranker interface {
	Name() string
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// Generator produces an answer from an assembled prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// DocumentStore keeps extracted document text for keyword and table search.
type DocumentStore interface {
	Put(ctx context.Context, doc Document) error
	All(ctx context.Context) ([]Document, error)
}
