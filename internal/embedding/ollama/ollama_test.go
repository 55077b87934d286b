package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/domain"
)

func fakeDaemon(t *testing.T, dim int, failFirst int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		n := calls.Add(1)
		if n <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"loading model"}`))
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		embs := make([][]float32, len(req.Input))
		for i := range embs {
			embs[i] = make([]float32, dim)
			embs[i][0] = float32(len(req.Input[i]))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": embs})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestEmbedBatches(t *testing.T) {
	srv, calls := fakeDaemon(t, 3, 0)
	e, err := New(Config{Host: srv.URL, Dimension: 3, BatchSize: 2})
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, float32(3), vecs[2][0])
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	srv, calls := fakeDaemon(t, 2, 1)
	e, err := New(Config{Host: srv.URL, Dimension: 2, MaxRetries: 3})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv, _ := fakeDaemon(t, 5, 0)
	e, err := New(Config{Host: srv.URL, Dimension: 3})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbedUnavailable(t *testing.T) {
	srv, _ := fakeDaemon(t, 2, 100)
	e, err := New(Config{Host: srv.URL, Dimension: 2, MaxRetries: 2})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestNewRequiresDimension(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
