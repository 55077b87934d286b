// Package qdrant is a minimal REST client for a Qdrant collection using
// cosine distance.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ragcore/internal/domain"
	"ragcore/internal/logger"
	"ragcore/internal/retry"
	"ragcore/internal/vectorstore"
)

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	MaxRetries int
}

type Storage struct {
	url        string
	apiKey     string
	collection string
	attempts   int
	client     *http.Client

	mu        sync.Mutex
	dimension int
}

var _ domain.VectorIndex = (*Storage)(nil)

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.URL == "" {
		cfg.URL = "http://localhost:6333"
	}
	if cfg.Collection == "" {
		cfg.Collection = vectorstore.DefaultCollection
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		attempts:   cfg.MaxRetries,
		client:     &http.Client{Timeout: timeout},
	}
}

// statusError is a non-2xx answer from Qdrant.
type statusError struct {
	method string
	path   string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %d %s", e.method, e.path, e.code, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (s *Storage) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(s.collection) + suffix
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// remoteDimension returns the vector size of the collection, or
// ErrCollectionMissing.
func (s *Storage) remoteDimension(ctx context.Context) (int, error) {
	s.mu.Lock()
	dim := s.dimension
	s.mu.Unlock()
	if dim > 0 {
		return dim, nil
	}
	var info collectionInfo
	if err := s.do(ctx, http.MethodGet, s.collectionPath(""), nil, &info); err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", domain.ErrCollectionMissing, s.collection)
		}
		return 0, err
	}
	dim = info.Result.Config.Params.Vectors.Size
	s.setDimension(dim)
	return dim, nil
}

func (s *Storage) setDimension(dim int) {
	s.mu.Lock()
	s.dimension = dim
	s.mu.Unlock()
}

func (s *Storage) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrInvalidInput, dim)
	}
	s.setDimension(0)
	have, err := s.remoteDimension(ctx)
	switch {
	case err == nil:
		return domain.CheckDimension(have, dim)
	case errors.Is(err, domain.ErrCollectionMissing):
		return s.create(ctx, dim)
	default:
		return err
	}
}

func (s *Storage) ResetCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", domain.ErrInvalidInput, dim)
	}
	s.setDimension(0)
	if err := s.do(ctx, http.MethodDelete, s.collectionPath(""), nil, nil); err != nil && !isNotFound(err) {
		return err
	}
	return s.create(ctx, dim)
}

func (s *Storage) create(ctx context.Context, dim int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionPath(""), body, nil); err != nil {
		return err
	}
	s.setDimension(dim)
	logger.Debug("qdrant: created collection %s (dim=%d)", s.collection, dim)
	return nil
}

func (s *Storage) Upsert(ctx context.Context, points []domain.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}
	dim, err := s.remoteDimension(ctx)
	if err != nil {
		return err
	}
	body := make([]map[string]any, len(points))
	for i, p := range points {
		if err := domain.CheckDimension(dim, len(p.Vector)); err != nil {
			return err
		}
		body[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	path := s.collectionPath("/points?wait=true")
	if err := s.do(ctx, http.MethodPut, path, map[string]any{"points": body}, nil); err != nil {
		if isNotFound(err) {
			s.setDimension(0)
			return fmt.Errorf("%w: %s", domain.ErrCollectionMissing, s.collection)
		}
		return err
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vec domain.Vector, opts domain.SearchOptions) ([]domain.SearchHit, error) {
	dim, err := s.remoteDimension(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckDimension(dim, len(vec)); err != nil {
		return nil, err
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  true,
	}
	if opts.MinScore != nil {
		req["score_threshold"] = *opts.MinScore
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload domain.Payload `json:"payload"`
			Vector  domain.Vector  `json:"vector"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionPath("/points/search"), req, &resp); err != nil {
		if isNotFound(err) {
			s.setDimension(0)
			return nil, fmt.Errorf("%w: %s", domain.ErrCollectionMissing, s.collection)
		}
		return nil, err
	}
	hits := make([]domain.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		if !opts.Accepts(r.Score) {
			continue
		}
		hits = append(hits, domain.SearchHit{
			Point: domain.IndexedPoint{ID: fmt.Sprint(r.ID), Vector: r.Vector, Payload: r.Payload},
			Score: r.Score,
		})
	}
	return hits, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionPath("/points/count"), map[string]any{"exact": true}, &resp)
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", domain.ErrCollectionMissing, s.collection)
		}
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// do sends one JSON request, retrying transport failures and 5xx answers.
// A 404 is returned as a bare *statusError so callers can map it to
// ErrCollectionMissing; every other failure is ErrIndexUnavailable.
func (s *Storage) do(ctx context.Context, method, path string, body, out any) error {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return fmt.Errorf("qdrant: encode request: %w", err)
		}
	}
	err := retry.Do(ctx, s.attempts, func(attempt int) error {
		var rd io.Reader
		if data != nil {
			rd = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, s.url+path, rd)
		if err != nil {
			return retry.Stop(err)
		}
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if s.apiKey != "" {
			req.Header.Set("api-key", s.apiKey)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Stop(ctx.Err())
			}
			logger.Debug("qdrant %s %s attempt %d: %v", method, path, attempt+1, err)
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			se := &statusError{method: method, path: path, code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
			if resp.StatusCode >= 500 {
				return se
			}
			return retry.Stop(se)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Stop(fmt.Errorf("qdrant: decode response: %w", err))
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return domain.FromContext(ctx.Err())
	}
	if isNotFound(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
}
