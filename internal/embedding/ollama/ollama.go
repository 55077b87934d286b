// Package ollama embeds text with a model served by an Ollama daemon.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"golang.org/x/time/rate"

	"ragcore/internal/domain"
	"ragcore/internal/embedding"
	"ragcore/internal/logger"
	"ragcore/internal/retry"
)

// Config configures the Ollama embedder. An empty Host falls back to
// OLLAMA_HOST.
type Config struct {
	Host       string
	Model      string
	Dimension  int
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration
	// RequestsPerSecond throttles calls to the daemon. Zero disables it.
	RequestsPerSecond float64
}

type Embedder struct {
	client  *api.Client
	cfg     Config
	limiter *rate.Limiter
}

var _ domain.Embedder = (*Embedder)(nil)

func New(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: ollama embedder needs a dimension", domain.ErrInvalidInput)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	base := envconfig.Host()
	if cfg.Host != "" {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("%w: ollama host %q: %v", domain.ErrInvalidInput, cfg.Host, err)
		}
		base = u
	}
	e := &Embedder{
		client: api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		cfg:    cfg,
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return e, nil
}

func (e *Embedder) Name() string   { return "ollama:" + e.cfg.Model }
func (e *Embedder) Dimension() int { return e.cfg.Dimension }

// Ping checks that the daemon answers.
func (e *Embedder) Ping(ctx context.Context) error {
	if err := e.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("%w: ollama: %w", domain.ErrModelUnavailable, err)
	}
	return nil
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	if err := embedding.Check(out, len(texts), e.cfg.Dimension); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([]domain.Vector, error) {
	var resp *api.EmbedResponse
	err := retry.Do(ctx, e.cfg.MaxRetries, func(attempt int) error {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return retry.Stop(err)
			}
		}
		r, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.cfg.Model, Input: batch})
		if err != nil {
			if ctx.Err() != nil {
				return retry.Stop(ctx.Err())
			}
			var se api.StatusError
			if errors.As(err, &se) && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
				return retry.Stop(fmt.Errorf("%w: ollama: %w", domain.ErrEmbeddingFailed, err))
			}
			logger.Debug("ollama embed attempt %d failed: %v", attempt+1, err)
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.FromContext(ctx.Err())
		}
		if errors.Is(err, domain.ErrEmbeddingFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: ollama: %w", domain.ErrModelUnavailable, err)
	}
	vecs := make([]domain.Vector, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vecs[i] = domain.Vector(emb)
	}
	return vecs, nil
}
