package main

import (
	"context"

	"github.com/spf13/cobra"

	"ragcore/internal/domain"
	"ragcore/internal/service"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var req service.IngestRequest
	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Extract, chunk, embed and index documents",
		Long: `Ingests files and directories. Directories are walked for supported
files (.pdf, .docx, .txt, .md). A failing file is reported and does not
stop the rest of the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer c.Close()
			req.Paths = args
			summary, err := ingest(cmd.Context(), c, req)
			printSummary(cmd, summary)
			return err
		},
	}
	cmd.Flags().StringVar(&req.DocID, "doc-id", "", "share one document id across every file of the batch")
	cmd.Flags().BoolVar(&req.StableIDs, "stable-ids", false, "derive document ids from file paths so re-ingestion replaces points")
	return cmd
}

func ingest(ctx context.Context, c *components, req service.IngestRequest) (domain.IngestSummary, error) {
	if err := c.ensureCollection(ctx); err != nil {
		return domain.IngestSummary{}, err
	}
	return c.ingester().Ingest(ctx, req)
}

func printSummary(cmd *cobra.Command, s domain.IngestSummary) {
	for _, r := range s.Results {
		switch r.Status {
		case domain.Succeeded:
			cmd.Printf("  ok    %s (%d chunks)\n", r.Path, r.Chunks)
		case domain.Skipped:
			cmd.Printf("  skip  %s (nothing to index)\n", r.Path)
		default:
			cmd.Printf("  fail  %s: %v\n", r.Path, r.Err)
		}
	}
	cmd.Printf("Ingested %d files (%d chunks), %d failed, %d skipped\n",
		s.Succeeded(), s.Chunks(), s.Failed(), s.Skipped())
}
