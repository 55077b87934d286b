package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragcore/internal/domain"
	"ragcore/internal/service"
	"ragcore/internal/tui"
)

// pipelinePort adapts a Pipeline to the TUI.
type pipelinePort struct {
	pipeline *service.Pipeline
	opts     service.QueryOptions
}

func (p pipelinePort) Ask(ctx context.Context, query string) (*domain.Answer, error) {
	return p.pipeline.Query(ctx, query, p.opts)
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [paths...]",
		Short: "Ask questions interactively",
		Long:  `Optionally ingests the given paths, then opens an interactive question prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := buildComponents(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			status := fmt.Sprintf("Index: %s/%s, embedder: %s", opts.cfg.VectorStore.Type, opts.cfg.VectorStore.Collection, c.embedder.Name())
			if len(args) > 0 {
				s, err := ingest(ctx, c, service.IngestRequest{Paths: args})
				if err != nil {
					return err
				}
				status = fmt.Sprintf("Ingested %d files (%d chunks), %d failed. %s", s.Succeeded(), s.Chunks(), s.Failed(), status)
			} else if err := c.ensureCollection(ctx); err != nil {
				return err
			}

			port := pipelinePort{
				pipeline: c.pipeline(),
				opts:     service.QueryOptions{TopK: opts.cfg.Retrieval.TopK, ScoreThreshold: opts.cfg.Retrieval.ScoreThreshold},
			}
			_, err = tea.NewProgram(tui.New(ctx, port, status), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
}
