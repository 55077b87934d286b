// Package ollama generates answers with a model served by an Ollama daemon.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"ragcore/internal/domain"
)

type Config struct {
	Host        string
	Model       string
	Temperature float64
	MaxTokens   int
}

type Generator struct {
	client *api.Client
	cfg    Config
}

var _ domain.Generator = (*Generator)(nil)

func New(cfg Config) (*Generator, error) {
	if cfg.Model == "" {
		cfg.Model = "qwen2.5:1.5b"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	host := envconfig.Host()
	if cfg.Host != "" {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("%w: ollama host %q: %v", domain.ErrInvalidInput, cfg.Host, err)
		}
		host = u
	}
	return &Generator{client: api.NewClient(host, http.DefaultClient), cfg: cfg}, nil
}

func (g *Generator) Name() string { return "ollama:" + g.cfg.Model }

// Generate streams the completion and returns the accumulated text.
func (g *Generator) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	req := api.GenerateRequest{
		Model:  g.cfg.Model,
		Prompt: prompt.Text,
		Options: map[string]any{
			"temperature": g.cfg.Temperature,
			"num_predict": g.cfg.MaxTokens,
		},
	}
	var b strings.Builder
	err := g.client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := b.WriteString(resp.Response)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.FromContext(ctx.Err())
		}
		return "", fmt.Errorf("%w: ollama: %w", domain.ErrGenerationUnavailable, err)
	}
	return strings.TrimSpace(b.String()), nil
}
