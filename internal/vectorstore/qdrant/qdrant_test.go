package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/domain"
	"ragcore/internal/vectorstore"
)

// fakeQdrant implements the handful of endpoints the client uses.
type fakeQdrant struct {
	mu       sync.Mutex
	size     int
	exists   bool
	points   map[string]domain.IndexedPoint
	order    []string
	failures atomic.Int32
	apiKey   string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
		return
	}
	if f.apiKey != "" && r.Header.Get("api-key") != f.apiKey {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/collections/documents")
	write := func(v any) { _ = json.NewEncoder(w).Encode(map[string]any{"result": v, "status": "ok"}) }
	notFound := func() { http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound) }

	switch {
	case path == "" && r.Method == http.MethodGet:
		if !f.exists {
			notFound()
			return
		}
		write(map[string]any{"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size, "distance": "Cosine"}}}})
	case path == "" && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.exists {
			http.Error(w, "already exists", http.StatusConflict)
			return
		}
		f.exists, f.size = true, body.Vectors.Size
		f.points, f.order = map[string]domain.IndexedPoint{}, nil
		write(true)
	case path == "" && r.Method == http.MethodDelete:
		if !f.exists {
			notFound()
			return
		}
		f.exists = false
		write(true)
	case path == "/points" && r.Method == http.MethodPut:
		if !f.exists {
			notFound()
			return
		}
		var body struct {
			Points []struct {
				ID      string         `json:"id"`
				Vector  domain.Vector  `json:"vector"`
				Payload domain.Payload `json:"payload"`
			} `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			if _, ok := f.points[p.ID]; !ok {
				f.order = append(f.order, p.ID)
			}
			f.points[p.ID] = domain.IndexedPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
		}
		write(map[string]any{"status": "completed"})
	case path == "/points/search":
		if !f.exists {
			notFound()
			return
		}
		var body struct {
			Vector         domain.Vector `json:"vector"`
			Limit          int           `json:"limit"`
			ScoreThreshold *float64      `json:"score_threshold"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		pts := make([]domain.IndexedPoint, 0, len(f.order))
		for _, id := range f.order {
			pts = append(pts, f.points[id])
		}
		hits := vectorstore.Rank(pts, body.Vector, domain.SearchOptions{TopK: body.Limit, MinScore: body.ScoreThreshold})
		out := make([]map[string]any, len(hits))
		for i, h := range hits {
			out[i] = map[string]any{"id": h.Point.ID, "score": h.Score, "payload": h.Point.Payload, "vector": h.Point.Vector}
		}
		write(out)
	case path == "/points/count":
		if !f.exists {
			notFound()
			return
		}
		write(map[string]any{"count": len(f.points)})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func newStorage(t *testing.T, f *fakeQdrant) *Storage {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewStorage(Config{URL: srv.URL, APIKey: f.apiKey})
}

func pt(id string, v ...float32) domain.IndexedPoint {
	return domain.IndexedPoint{ID: id, Vector: v, Payload: domain.Payload{Text: "text " + id, DocID: "doc-" + id, Name: id + ".txt"}}
}

func TestEnsureCollectionCreatesOnce(t *testing.T) {
	ctx := context.Background()
	f := &fakeQdrant{apiKey: "secret"}
	s := newStorage(t, f)

	_, err := s.Count(ctx)
	assert.ErrorIs(t, err, domain.ErrCollectionMissing)

	require.NoError(t, s.EnsureCollection(ctx, 3))
	require.NoError(t, s.Upsert(ctx, []domain.IndexedPoint{pt("a", 1, 0, 0)}))
	require.NoError(t, s.EnsureCollection(ctx, 3))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, s.EnsureCollection(ctx, 4), domain.ErrDimensionMismatch)
}

func TestResetCollection(t *testing.T) {
	ctx := context.Background()
	f := &fakeQdrant{}
	s := newStorage(t, f)

	require.NoError(t, s.ResetCollection(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.IndexedPoint{pt("a", 1, 0)}))
	require.NoError(t, s.ResetCollection(ctx, 3))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 3, f.size)
}

func TestUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, &fakeQdrant{})
	require.NoError(t, s.EnsureCollection(ctx, 2))

	pts := []domain.IndexedPoint{pt("a", 1, 0), pt("b", 0, 1), pt("c", 1, 1)}
	require.NoError(t, s.Upsert(ctx, pts))
	require.NoError(t, s.Upsert(ctx, pts))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := s.Search(ctx, domain.Vector{1, 0}, domain.SearchOptions{TopK: 5, MinScore: domain.Threshold(0.2)})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Point.ID)
	assert.Equal(t, "doc-a", hits[0].Point.Payload.DocID)
	assert.Equal(t, "c", hits[1].Point.ID)

	assert.ErrorIs(t, s.Upsert(ctx, []domain.IndexedPoint{pt("z", 1, 2, 3)}), domain.ErrDimensionMismatch)
	_, err = s.Search(ctx, domain.Vector{1}, domain.SearchOptions{TopK: 1})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	f := &fakeQdrant{}
	s := newStorage(t, f)
	f.failures.Store(2)

	require.NoError(t, s.EnsureCollection(ctx, 2))
	assert.True(t, f.exists)
}

func TestUnavailableAfterRetries(t *testing.T) {
	ctx := context.Background()
	f := &fakeQdrant{}
	s := newStorage(t, f)
	f.failures.Store(10)

	err := s.EnsureCollection(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Equal(t, int32(7), f.failures.Load())
}

func TestSearchMissingCollection(t *testing.T) {
	s := newStorage(t, &fakeQdrant{})
	_, err := s.Search(context.Background(), domain.Vector{1, 0}, domain.SearchOptions{TopK: 1})
	assert.ErrorIs(t, err, domain.ErrCollectionMissing)
}

func TestUpsertMissingCollection(t *testing.T) {
	ctx := context.Background()
	f := &fakeQdrant{}
	s := newStorage(t, f)
	require.NoError(t, s.EnsureCollection(ctx, 2))

	f.mu.Lock()
	f.exists = false
	f.mu.Unlock()

	err := s.Upsert(ctx, []domain.IndexedPoint{pt("a", 1, 0)})
	assert.ErrorIs(t, err, domain.ErrCollectionMissing)
	assert.Zero(t, s.dimension)

	require.NoError(t, s.EnsureCollection(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.IndexedPoint{pt("a", 1, 0)}))
}
