package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIDStable(t *testing.T) {
	a := ChunkID("doc", "a.txt", 0)
	assert.Equal(t, a, ChunkID("doc", "a.txt", 0))
	assert.NotEqual(t, a, ChunkID("doc", "a.txt", 1))
	assert.NotEqual(t, a, ChunkID("doc", "b.txt", 0))
	assert.Len(t, a, 36)
}

func TestNewChunksDropsBlank(t *testing.T) {
	doc := Document{ID: "d1", Name: "n"}
	chunks := NewChunks(doc, []string{" one ", "  ", "two"})
	require.Len(t, chunks, 2)
	assert.Equal(t, "one", chunks[0].Text)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, ChunkID("d1", "n", 1), chunks[1].ID)
}

func TestTableString(t *testing.T) {
	tbl := Table{{"a", "b"}, {"1", "2"}}
	assert.Equal(t, "a\tb\n1\t2", tbl.String())
}

func TestDimensionMismatchIs(t *testing.T) {
	err := fmt.Errorf("upsert: %w", CheckDimension(384, 768))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	var dm *DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 384, dm.Want)
	assert.Equal(t, 768, dm.Got)

	assert.NoError(t, CheckDimension(3, 3))
}

func TestFromContext(t *testing.T) {
	assert.NoError(t, FromContext(nil))
	assert.ErrorIs(t, FromContext(context.DeadlineExceeded), ErrTimeout)
	other := errors.New("boom")
	assert.Equal(t, other, FromContext(other))
}

func TestSearchOptionsAccepts(t *testing.T) {
	assert.True(t, SearchOptions{}.Accepts(-1))
	opts := SearchOptions{MinScore: Threshold(0.2)}
	assert.True(t, opts.Accepts(0.2))
	assert.False(t, opts.Accepts(0.19))
}

type fixedEmbedder struct{ n int }

func (f fixedEmbedder) Name() string   { return "fixed" }
func (f fixedEmbedder) Dimension() int { return 2 }
func (f fixedEmbedder) Embed(_ context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, f.n)
	for i := range out {
		out[i] = Vector{1, 0}
	}
	return out, nil
}

func TestEmbedOne(t *testing.T) {
	v, err := EmbedOne(context.Background(), fixedEmbedder{n: 1}, "x")
	require.NoError(t, err)
	assert.Equal(t, Vector{1, 0}, v)

	_, err = EmbedOne(context.Background(), fixedEmbedder{n: 2}, "x")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestVectorIsZero(t *testing.T) {
	assert.True(t, Vector{0, 0, 0}.IsZero())
	assert.True(t, Vector(nil).IsZero())
	assert.False(t, Vector{0, 0.5, 0}.IsZero())
}

func TestIngestSummaryCounts(t *testing.T) {
	s := IngestSummary{Results: []IngestResult{
		{Status: Succeeded, Chunks: 3},
		{Status: Failed},
		{Status: Skipped},
		{Status: Succeeded, Chunks: 2},
	}}
	assert.Equal(t, 2, s.Succeeded())
	assert.Equal(t, 1, s.Failed())
	assert.Equal(t, 1, s.Skipped())
	assert.Equal(t, 5, s.Chunks())
}
