package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ragcore/internal/chunker"
	"ragcore/internal/docstore/memory"
	"ragcore/internal/domain"
	"ragcore/internal/embedding/hashing"
	vmemory "ragcore/internal/vectorstore/memory"
)

const testDim = 1024

// env is an in-process pipeline over the memory index and document store.
type env struct {
	embedder domain.Embedder
	index    *vmemory.Storage
	docs     *memory.Store
	ingester *Ingester
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		embedder: hashing.New(testDim),
		index:    vmemory.NewStorage(),
		docs:     memory.New(),
	}
	require.NoError(t, e.index.EnsureCollection(context.Background(), testDim))
	e.ingester = NewIngester(chunker.NewSentenceChunker(200, chunker.NewRegexSplitter()),
		e.embedder, e.index, e.docs, IngestOptions{Workers: 3})
	return e
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

type recordingGenerator struct {
	mu      sync.Mutex
	prompts []domain.Prompt
	answer  string
	err     error
}

func (g *recordingGenerator) Name() string { return "recording" }
func (g *recordingGenerator) Generate(_ context.Context, p domain.Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	return g.answer, g.err
}

func (g *recordingGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}
