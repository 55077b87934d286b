package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/domain"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine(domain.Vector{1, 1}, domain.Vector{2, 2}), 1e-9)
	assert.InDelta(t, 0.0, Cosine(domain.Vector{1, 0}, domain.Vector{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine(domain.Vector{1, 0}, domain.Vector{-3, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine(domain.Vector{0, 0}, domain.Vector{1, 0}))
}

func TestRank(t *testing.T) {
	points := []domain.IndexedPoint{
		{ID: "a", Vector: domain.Vector{1, 0}},
		{ID: "b", Vector: domain.Vector{0, 1}},
		{ID: "c", Vector: domain.Vector{1, 1}},
		{ID: "d", Vector: domain.Vector{2, 0}},
	}
	q := domain.Vector{1, 0}

	hits := Rank(points, q, domain.SearchOptions{TopK: 10})
	require.Len(t, hits, 4)
	assert.Equal(t, "a", hits[0].Point.ID)
	assert.Equal(t, "d", hits[1].Point.ID)
	assert.Equal(t, "c", hits[2].Point.ID)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}

	hits = Rank(points, q, domain.SearchOptions{TopK: 10, MinScore: domain.Threshold(0.5)})
	assert.Len(t, hits, 3)

	hits = Rank(points, q, domain.SearchOptions{TopK: 1})
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Point.ID)
}
