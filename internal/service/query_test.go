package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/docstore/memory"
	"ragcore/internal/domain"
	"ragcore/internal/embedding/hashing"
	"ragcore/internal/rerank/lexical"
	vmemory "ragcore/internal/vectorstore/memory"
)

func ingestFiles(t *testing.T, e *env, files map[string]string) {
	t.Helper()
	dir := writeFiles(t, files)
	summary, err := e.ingester.Ingest(context.Background(), IngestRequest{Paths: []string{dir}})
	require.NoError(t, err)
	require.Zero(t, summary.Failed())
}

func uniqueDocs(t *testing.T, blocks []domain.ContextBlock) {
	t.Helper()
	seen := make(map[string]bool)
	for _, b := range blocks {
		assert.False(t, seen[b.DocID], "doc %s appears twice", b.DocID)
		seen[b.DocID] = true
	}
}

func TestQueryAnswered(t *testing.T) {
	e := newEnv(t)
	ingestFiles(t, e, map[string]string{
		"cats.txt": "Cats sleep sixteen hours a day. Cats purr when content.",
		"dogs.txt": "Dogs enjoy long walks in the park.",
	})
	gen := &recordingGenerator{answer: "About sixteen hours."}
	p := NewPipeline(e.embedder, e.index, lexical.New(), gen, e.docs, PipelineOptions{KeywordSearch: true})

	answer, err := p.Query(context.Background(), "  How long do cats sleep?  ", DefaultQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnswered, answer.Status)
	assert.Equal(t, "How long do cats sleep?", answer.Query)
	assert.Equal(t, "About sixteen hours.", answer.Text)
	assert.Nil(t, answer.Fallback)
	require.NotEmpty(t, answer.Blocks)
	assert.Equal(t, "cats.txt", answer.Blocks[0].Name)
	assert.Equal(t, "cats.txt", answer.Sources()[0])
	uniqueDocs(t, answer.Blocks)

	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0].Text, "Document: cats.txt")
	assert.Contains(t, gen.prompts[0].Text, "How long do cats sleep?")
}

func TestQueryDedupAndTopK(t *testing.T) {
	e := newEnv(t)
	ingestFiles(t, e, map[string]string{
		"a.txt": "Cats climb trees. Cats chase mice. Cats nap in sunlight. Cats groom themselves.",
		"b.txt": "Cats are curious animals.",
		"c.txt": "Many cats live indoors.",
	})
	p := NewPipeline(e.embedder, e.index, lexical.New(), nil, e.docs, PipelineOptions{})

	answer, err := p.Query(context.Background(), "cats", QueryOptions{TopK: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(answer.Blocks), 2)
	assert.NotEmpty(t, answer.Blocks)
	uniqueDocs(t, answer.Blocks)
	assert.Empty(t, answer.Text)
}

func TestQueryNoResults(t *testing.T) {
	e := newEnv(t)
	gen := &recordingGenerator{answer: "unused"}
	p := NewPipeline(e.embedder, e.index, lexical.New(), gen, e.docs, PipelineOptions{KeywordSearch: true})

	answer, err := p.Query(context.Background(), "quantum chromodynamics", DefaultQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNoResults, answer.Status)
	assert.Empty(t, answer.Blocks)
	assert.Zero(t, gen.calls())
}

func TestQueryEmpty(t *testing.T) {
	e := newEnv(t)
	p := NewPipeline(e.embedder, e.index, nil, nil, nil, PipelineOptions{})
	_, err := p.Query(context.Background(), "   ", DefaultQueryOptions())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

type failingIndex struct {
	vmemory.Storage
	err error
}

func (f *failingIndex) Search(context.Context, domain.Vector, domain.SearchOptions) ([]domain.SearchHit, error) {
	return nil, f.err
}

func TestQueryFallsBackToKeywordSearch(t *testing.T) {
	ctx := context.Background()
	docs := memory.New()
	require.NoError(t, docs.Put(ctx, domain.Document{ID: "d1", Name: "big.txt", Text: "Big data pipelines move data around."}))
	require.NoError(t, docs.Put(ctx, domain.Document{ID: "d2", Name: "other.txt", Text: "Unrelated content."}))
	idx := &failingIndex{err: fmt.Errorf("%w: connection refused", domain.ErrIndexUnavailable)}

	p := NewPipeline(hashing.New(testDim), idx, lexical.New(), nil, docs, PipelineOptions{KeywordSearch: true})
	answer, err := p.Query(ctx, "data pipelines", DefaultQueryOptions())
	require.NoError(t, err)
	assert.ErrorIs(t, answer.Fallback, domain.ErrIndexUnavailable)
	require.Len(t, answer.Blocks, 1)
	assert.Equal(t, "d1", answer.Blocks[0].DocID)
	assert.Contains(t, answer.Blocks[0].Text, "data pipelines")

	p = NewPipeline(hashing.New(testDim), idx, lexical.New(), nil, docs, PipelineOptions{})
	_, err = p.Query(ctx, "data pipelines", DefaultQueryOptions())
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestQueryDimensionMismatchIsNotDegraded(t *testing.T) {
	ctx := context.Background()
	docs := memory.New()
	require.NoError(t, docs.Put(ctx, domain.Document{ID: "d1", Name: "a.txt", Text: "data"}))
	idx := &failingIndex{err: domain.CheckDimension(384, testDim)}

	p := NewPipeline(hashing.New(testDim), idx, nil, nil, docs, PipelineOptions{KeywordSearch: true})
	_, err := p.Query(ctx, "data", DefaultQueryOptions())
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestQueryGenerationFailureKeepsContext(t *testing.T) {
	e := newEnv(t)
	ingestFiles(t, e, map[string]string{"go.txt": "Go schedules goroutines onto threads."})
	gen := &recordingGenerator{err: errors.New("backend down")}
	p := NewPipeline(e.embedder, e.index, nil, gen, e.docs, PipelineOptions{})

	answer, err := p.Query(context.Background(), "goroutines", QueryOptions{TopK: 3})
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	require.NotNil(t, answer)
	assert.NotEmpty(t, answer.Blocks)
	assert.Empty(t, answer.Text)
}

type blockingEmbedder struct{}

func (blockingEmbedder) Name() string   { return "blocking" }
func (blockingEmbedder) Dimension() int { return testDim }
func (blockingEmbedder) Embed(ctx context.Context, _ []string) ([]domain.Vector, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestQueryStageTimeout(t *testing.T) {
	e := newEnv(t)
	p := NewPipeline(blockingEmbedder{}, e.index, nil, nil, nil, PipelineOptions{StageTimeout: 20 * time.Millisecond})

	_, err := p.Query(context.Background(), "anything", DefaultQueryOptions())
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestQueryTables(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.docs.Put(ctx, domain.Document{
		ID: "r1", Name: "report.docx", Text: "Annual report.",
		Tables: []domain.Table{{{"year", "revenue"}, {"2023", "10"}}},
	}))
	gen := &recordingGenerator{answer: "unused"}
	p := NewPipeline(e.embedder, e.index, nil, gen, e.docs, PipelineOptions{KeywordSearch: true})

	answer, err := p.Query(ctx, "2023", DefaultQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnswered, answer.Status)
	require.Len(t, answer.Tables, 1)
	assert.Equal(t, "report.docx", answer.Tables[0].Name)
	assert.Empty(t, answer.Blocks)
	assert.Zero(t, gen.calls())
}

func TestQueryKeywordHitsInRerankPool(t *testing.T) {
	ctx := context.Background()
	docs := memory.New()
	require.NoError(t, docs.Put(ctx, domain.Document{ID: "d1", Name: "a.txt", Text: "The merger closed in March."}))
	idx := vmemory.NewStorage()
	require.NoError(t, idx.EnsureCollection(ctx, testDim))

	p := NewPipeline(hashing.New(testDim), idx, lexical.New(), nil, docs,
		PipelineOptions{KeywordSearch: true, IncludeKeywordHits: true})
	answer, err := p.Query(ctx, "merger", DefaultQueryOptions())
	require.NoError(t, err)
	require.Len(t, answer.Blocks, 1)
	assert.Equal(t, "a.txt", answer.Blocks[0].Name)
}
