package main

import (
	"github.com/spf13/cobra"

	"ragcore/internal/config"
	"ragcore/internal/logger"
)

// rootOptions holds the persistent flags and the config they resolve to.
type rootOptions struct {
	configPath string
	verbose    bool
	cfg        *config.AppConfig
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "rag",
		Short: "Retrieval-augmented question answering over local documents",
		Long: `Ingests PDF, Word, text and markdown files into a vector index and
answers questions from the most relevant passages.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to a YAML or TOML config file (default ./config.yaml or ~/.config/ragcore/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every pipeline stage")

	root.AddCommand(
		newInitCmd(opts),
		newResetCmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newTUICmd(opts),
	)
	return root
}

func (o *rootOptions) load() error {
	var err error
	if o.configPath == "" {
		o.cfg, _, err = config.LoadDefault()
	} else {
		o.cfg, err = config.Load(o.configPath)
	}
	if err != nil {
		return err
	}
	logger.SetLevel(logger.ParseLevel(o.cfg.Log.Level))
	if o.verbose {
		logger.SetVerbose(true)
	}
	return nil
}
