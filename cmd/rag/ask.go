package main

import (
	"strings"

	"github.com/spf13/cobra"

	"ragcore/internal/domain"
	"ragcore/internal/logger"
	"ragcore/internal/service"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		topK      int
		threshold float64
		paths     []string
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed documents",
		Long: `Retrieves the passages most similar to the question, re-ranks them,
keeps one passage per document and generates an answer from them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := buildComponents(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer c.Close()
			if len(paths) > 0 {
				summary, err := ingest(ctx, c, service.IngestRequest{Paths: paths})
				if err != nil {
					return err
				}
				logger.Info("ingested %d files (%d chunks)", summary.Succeeded(), summary.Chunks())
			}

			q := service.QueryOptions{TopK: opts.cfg.Retrieval.TopK, ScoreThreshold: opts.cfg.Retrieval.ScoreThreshold}
			if cmd.Flags().Changed("top-k") {
				q.TopK = topK
			}
			if cmd.Flags().Changed("threshold") {
				q.ScoreThreshold = threshold
			}
			answer, err := c.pipeline().Query(ctx, strings.Join(args, " "), q)
			if answer != nil {
				printAnswer(cmd, answer)
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", service.DefaultTopK, "maximum number of documents to ground the answer on")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", service.DefaultScoreThreshold, "minimum cosine similarity of retrieved chunks")
	cmd.Flags().StringSliceVar(&paths, "ingest", nil, "ingest these paths before asking")
	return cmd
}

func printAnswer(cmd *cobra.Command, a *domain.Answer) {
	if a.Status == domain.StatusNoResults {
		cmd.Println("No relevant documents found.")
		return
	}
	if a.Fallback != nil {
		cmd.Printf("(vector search unavailable, keyword results only: %v)\n", a.Fallback)
	}
	if a.Text != "" {
		cmd.Println(a.Text)
		cmd.Println()
	}
	if len(a.Blocks) > 0 {
		cmd.Println("Retrieved from:")
		for _, name := range a.Sources() {
			cmd.Printf("  - %s\n", name)
		}
	}
	for _, t := range a.Tables {
		cmd.Printf("\nTable %d from %s:\n%s\n", t.Index+1, t.Name, t.Table.String())
	}
}
