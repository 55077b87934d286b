// Package embedding holds the helpers shared by the embedder backends.
package embedding

import (
	"context"
	"fmt"
	"sync"

	"ragcore/internal/domain"
)

// Check verifies that vecs holds one vector of dimension dim per input.
func Check(vecs []domain.Vector, inputs, dim int) error {
	if len(vecs) != inputs {
		return fmt.Errorf("%w: got %d vectors for %d inputs", domain.ErrEmbeddingFailed, len(vecs), inputs)
	}
	for _, v := range vecs {
		if err := domain.CheckDimension(dim, len(v)); err != nil {
			return err
		}
	}
	return nil
}

// Lazy builds the wrapped embedder on first use and shares it between all
// callers. If the build fails every call returns ErrModelUnavailable.
type Lazy struct {
	name  string
	dim   int
	build func() (domain.Embedder, error)

	once  sync.Once
	inner domain.Embedder
	err   error
}

var _ domain.Embedder = (*Lazy)(nil)

func NewLazy(name string, dim int, build func() (domain.Embedder, error)) *Lazy {
	return &Lazy{name: name, dim: dim, build: build}
}

func (l *Lazy) Name() string   { return l.name }
func (l *Lazy) Dimension() int { return l.dim }

// Load forces initialisation and reports whether the model is usable.
func (l *Lazy) Load() error {
	l.once.Do(func() {
		inner, err := l.build()
		switch {
		case err != nil:
			l.err = fmt.Errorf("%w: %s: %w", domain.ErrModelUnavailable, l.name, err)
		case inner.Dimension() != l.dim:
			l.err = &domain.DimensionMismatchError{Want: l.dim, Got: inner.Dimension()}
		default:
			l.inner = inner
		}
	})
	return l.err
}

func (l *Lazy) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l.inner.Embed(ctx, texts)
}
