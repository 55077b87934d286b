// Package openai embeds text through an OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ragcore/internal/domain"
	"ragcore/internal/embedding"
)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Dimension int
	// SendDimensions asks the server to truncate to Dimension. Only newer
	// OpenAI models accept it.
	SendDimensions bool
	Timeout        time.Duration
	MaxRetries     int
}

// Client implements domain.Embedder on top of the official SDK.
type Client struct {
	sdk openai.Client
	cfg Config
}

var _ domain.Embedder = (*Client)(nil)

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrModelUnavailable, cfg.APIKeyEnv)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: openai embedder needs a dimension", domain.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	sdk := openai.NewClient(
		option.WithAPIKey(key),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	)
	return &Client{sdk: sdk, cfg: cfg}, nil
}

func (c *Client) Name() string   { return "openai:" + c.cfg.Model }
func (c *Client) Dimension() int { return c.cfg.Dimension }

func (c *Client) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.cfg.Model),
	}
	if c.cfg.SendDimensions {
		params.Dimensions = openai.Int(int64(c.cfg.Dimension))
	}
	resp, err := c.sdk.Embeddings.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}
	out := make([]domain.Vector, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("%w: openai returned index %d for %d inputs", domain.ErrEmbeddingFailed, d.Index, len(texts))
		}
		v := make(domain.Vector, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		out[d.Index] = v
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("%w: openai returned no vector for input %d", domain.ErrEmbeddingFailed, i)
		}
	}
	if err := embedding.Check(out, len(texts), c.cfg.Dimension); err != nil {
		return nil, err
	}
	return out, nil
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return domain.FromContext(ctx.Err())
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: openai: %w", domain.ErrModelUnavailable, err)
		}
		return fmt.Errorf("%w: openai: %w", domain.ErrEmbeddingFailed, err)
	}
	return fmt.Errorf("%w: openai: %w", domain.ErrModelUnavailable, err)
}
