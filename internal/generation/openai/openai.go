// Package openai generates answers through an OpenAI-compatible chat
// completions API.
package openai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ragcore/internal/domain"
)

type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type Generator struct {
	sdk openai.Client
	cfg Config
}

var _ domain.Generator = (*Generator)(nil)

func New(cfg Config) (*Generator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrGenerationUnavailable, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	sdk := openai.NewClient(
		option.WithAPIKey(key),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
	)
	return &Generator{sdk: sdk, cfg: cfg}, nil
}

func (g *Generator) Name() string { return "openai:" + g.cfg.Model }

func (g *Generator) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	resp, err := g.sdk.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You answer questions using only the provided document context."),
			openai.UserMessage(prompt.Text),
		},
		Temperature: openai.Float(g.cfg.Temperature),
		MaxTokens:   openai.Int(int64(g.cfg.MaxTokens)),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.FromContext(ctx.Err())
		}
		return "", fmt.Errorf("%w: openai: %w", domain.ErrGenerationUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", domain.ErrGenerationUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
