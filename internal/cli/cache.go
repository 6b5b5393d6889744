package cli

import (
	"fmt"

	"github.com/ppiankov/factordb/internal/pipeline"
	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Cache.Enabled = true

		logger := newLogger(cmd.ErrOrStderr(), cfg.Output.Verbose)
		defer func() { _ = logger.Sync() }()

		if err := pipeline.NewPipeline(cfg, logger).ClearCache(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared cache: %s\n", cfg.Cache.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
