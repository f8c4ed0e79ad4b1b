// Package cli builds the ftsearch command tree, grounded on the cobra
// root/subcommand layout of go-mizu's githome and drive blueprints
// (blueprints/githome/cli/root.go).
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scampagna/ftsearch/index"
	"github.com/scampagna/ftsearch/metrics"
)

var (
	baseDir string
	logger  *slog.Logger
	mtr     *metrics.Metrics
)

// Execute builds and runs the root command against ctx, returning the
// RunE error of whichever subcommand ran (nil on success).
func Execute(ctx context.Context) error {
	logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	mtr = metrics.New()

	rootCmd := &cobra.Command{
		Use:           "ftsearch",
		Short:         "Full-text search engine core CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&baseDir, "dir", "ftsearch-data", "Base directory holding per-index <name>.rsi stores")

	rootCmd.AddCommand(
		newCreateIndexCmd(),
		newDeleteIndexCmd(),
		newIndexCmd(),
		newBulkCmd(),
		newQueryCmd(),
		newStatsCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}

func openRegistry() (*index.Registry, error) {
	return index.NewRegistry(baseDir, mtr, logger)
}
