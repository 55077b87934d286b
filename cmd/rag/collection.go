package main

import (
	"github.com/spf13/cobra"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the vector collection if it does not exist",
		Long: `Creates the configured collection sized for the configured embedder.
An existing collection is kept; a dimension mismatch is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := buildComponents(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.ensureCollection(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("Collection %q ready (dimension %d)\n", opts.cfg.VectorStore.Collection, c.embedder.Dimension())
			return nil
		},
	}
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate the vector collection",
		Long:  `Deletes every indexed point and recreates an empty collection.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := buildComponents(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.index.ResetCollection(cmd.Context(), c.embedder.Dimension()); err != nil {
				return err
			}
			if err := c.clearDocuments(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("Collection %q reset\n", opts.cfg.VectorStore.Collection)
			return nil
		},
	}
}
