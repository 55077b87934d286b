// Package tei calls a cross-encoder served by Hugging Face
// text-embeddings-inference through its /rerank endpoint.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragcore/internal/domain"
	"ragcore/internal/logger"
	"ragcore/internal/retry"
)

type Config struct {
	URL        string
	Model      string
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
}

type Reranker struct {
	cfg    Config
	client *http.Client
}

var _ domain.Reranker = (*Reranker)(nil)

func New(cfg Config) (*Reranker, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: tei reranker needs a url", domain.ErrInvalidInput)
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Model == "" {
		cfg.Model = "cross-encoder/ms-marco-MiniLM-L-12-v2"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Reranker{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (r *Reranker) Name() string { return "tei:" + r.cfg.Model }

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (r *Reranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	scores := make([]float64, len(passages))
	for start := 0; start < len(passages); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(passages))
		results, err := r.rerank(ctx, query, passages[start:end])
		if err != nil {
			return nil, err
		}
		seen := make([]bool, end-start)
		for _, res := range results {
			if res.Index < 0 || res.Index >= len(seen) {
				return nil, fmt.Errorf("%w: tei returned index %d for %d texts", domain.ErrModelUnavailable, res.Index, len(seen))
			}
			seen[res.Index] = true
			scores[start+res.Index] = res.Score
		}
		for i, ok := range seen {
			if !ok {
				return nil, fmt.Errorf("%w: tei returned no score for text %d", domain.ErrModelUnavailable, start+i)
			}
		}
	}
	return scores, nil
}

func (r *Reranker) rerank(ctx context.Context, query string, texts []string) ([]rerankResult, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts, RawScores: false, Truncate: true})
	if err != nil {
		return nil, err
	}
	var out []rerankResult
	err = retry.Do(ctx, r.cfg.MaxRetries, func(attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL+"/rerank", bytes.NewReader(body))
		if err != nil {
			return retry.Stop(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Stop(ctx.Err())
			}
			logger.Debug("tei rerank attempt %d: %v", attempt+1, err)
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("tei rerank: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return err
			}
			return retry.Stop(err)
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return retry.Stop(fmt.Errorf("tei rerank: decode: %w", err))
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.FromContext(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}
	return out, nil
}
