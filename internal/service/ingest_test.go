package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/chunker"
	"ragcore/internal/domain"
	"ragcore/internal/embedding/hashing"
	"ragcore/internal/logger"
	vmemory "ragcore/internal/vectorstore/memory"
)

func byPath(s domain.IngestSummary) map[string]domain.IngestResult {
	out := make(map[string]domain.IngestResult, len(s.Results))
	for _, r := range s.Results {
		out[filepath.Base(r.Path)] = r
	}
	return out
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	dir := writeFiles(t, map[string]string{
		"cats.txt":      "Cats sleep a lot. Cats purr.",
		"notes.md":      "Markdown notes about dogs.",
		"empty.txt":     "   ",
		"nested/go.txt": "Go has goroutines.",
		"image.png":     "not text",
	})

	summary, err := e.ingester.Ingest(ctx, IngestRequest{
		Paths: []string{dir, filepath.Join(dir, "missing.txt")},
	})
	require.NoError(t, err)
	require.Len(t, summary.Results, 5)
	assert.Equal(t, 3, summary.Succeeded())
	assert.Equal(t, 1, summary.Skipped())
	assert.Equal(t, 1, summary.Failed())

	results := byPath(summary)
	assert.Equal(t, domain.Skipped, results["empty.txt"].Status)
	assert.Equal(t, 0, results["empty.txt"].Chunks)
	assert.ErrorIs(t, results["missing.txt"].Err, domain.ErrInvalidInput)
	assert.NotContains(t, results, "image.png")
	assert.NotEqual(t, results["cats.txt"].DocID, results["notes.md"].DocID)

	n, err := e.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, summary.Chunks(), n)

	docs, err := e.docs.All(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestIngestIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	dir := writeFiles(t, map[string]string{
		"a.txt": "First sentence here. Second sentence follows. Third one ends it.",
		"b.txt": "Another document entirely.",
	})
	req := IngestRequest{Paths: []string{dir}, StableIDs: true}

	first, err := e.ingester.Ingest(ctx, req)
	require.NoError(t, err)
	n1, err := e.index.Count(ctx)
	require.NoError(t, err)

	second, err := e.ingester.Ingest(ctx, req)
	require.NoError(t, err)
	n2, err := e.index.Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, n1, n2)
	assert.Equal(t, byPath(first)["a.txt"].DocID, byPath(second)["a.txt"].DocID)
}

func TestIngestEmptyDocument(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	dir := writeFiles(t, map[string]string{"empty.txt": ""})

	summary, err := e.ingester.Ingest(ctx, IngestRequest{Paths: []string{filepath.Join(dir, "empty.txt")}})
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, domain.Skipped, summary.Results[0].Status)

	n, err := e.index.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestSkipsTermlessChunks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	in := NewIngester(chunker.NewSentenceChunker(10, chunker.NewRegexSplitter()),
		e.embedder, e.index, e.docs, IngestOptions{Workers: 2})
	dir := writeFiles(t, map[string]string{
		"filler.txt": "The and of.",
		"mixed.txt":  "Of the. Cats purr.",
	})

	summary, err := in.Ingest(ctx, IngestRequest{Paths: []string{dir}})
	require.NoError(t, err)
	results := byPath(summary)
	assert.Equal(t, domain.Skipped, results["filler.txt"].Status)
	assert.Equal(t, domain.Succeeded, results["mixed.txt"].Status)
	assert.Equal(t, 1, results["mixed.txt"].Chunks)

	n, err := e.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestSharedDocID(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	dir := writeFiles(t, map[string]string{"a.txt": "Alpha text.", "b.txt": "Beta text."})

	summary, err := e.ingester.Ingest(ctx, IngestRequest{Paths: []string{dir}, DocID: "batch-1"})
	require.NoError(t, err)
	for _, r := range summary.Results {
		assert.Equal(t, "batch-1", r.DocID)
	}
	n, err := e.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "chunk ids include the file name so files sharing a doc_id do not collide")
}

func TestIngestCorruptFileDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	dir := writeFiles(t, map[string]string{"good.txt": "Readable text.", "bad.docx": "not a zip archive"})

	summary, err := e.ingester.Ingest(ctx, IngestRequest{Paths: []string{dir}})
	require.NoError(t, err)
	results := byPath(summary)
	assert.Equal(t, domain.Succeeded, results["good.txt"].Status)
	assert.Equal(t, domain.Failed, results["bad.docx"].Status)
	assert.ErrorIs(t, results["bad.docx"].Err, domain.ErrExtractionFailed)
}

func TestIngestDimensionMismatchAborts(t *testing.T) {
	ctx := context.Background()
	idx := vmemory.NewStorage()
	require.NoError(t, idx.EnsureCollection(ctx, 3))
	in := NewIngester(chunker.NewSentenceChunker(100, nil), hashing.New(8), idx, nil, IngestOptions{Workers: 1})
	dir := writeFiles(t, map[string]string{"a.txt": "Some text.", "b.txt": "More text."})

	summary, err := in.Ingest(ctx, IngestRequest{Paths: []string{dir}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Len(t, summary.Results, 2)
	assert.Equal(t, 2, summary.Failed())
}

func TestIngestMissingCollectionAborts(t *testing.T) {
	ctx := context.Background()
	in := NewIngester(chunker.NewSentenceChunker(100, nil), hashing.New(8), vmemory.NewStorage(), nil, IngestOptions{})
	dir := writeFiles(t, map[string]string{"a.txt": "Some text."})

	buf := new(bytes.Buffer)
	logger.SetOutput(buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	_, err := in.Ingest(ctx, IngestRequest{Paths: []string{dir}})
	assert.ErrorIs(t, err, domain.ErrCollectionMissing)
	assert.Contains(t, buf.String(), "[ERROR] ingest aborted")
}
