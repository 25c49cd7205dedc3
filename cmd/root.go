// Package cmd implements the corpus CLI. Following the pattern used by
// kubectl and similar tools, all command logic lives here and main.go stays
// a minimal entry point.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/corpus/internal/app"
	"github.com/corvid-labs/corpus/internal/config"
	"github.com/corvid-labs/corpus/internal/log"
)

// Execute runs the root command. It is the entry point called from main().
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "corpus",
		Short: "Corpus - content ingestion, indexing and search",
		Long: `Corpus ingests raw content (text, HTML, email), extracts and enriches
it, and makes it searchable through blended lexical and semantic ranking.

Content is stored in PostgreSQL; enrichment and embeddings come from the
Gemini API and degrade gracefully when unavailable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().Bool("verbose", false, "enable debug logging")
	root.PersistentFlags().Bool("json-logs", false, "write logs as JSON")

	root.AddCommand(
		newMigrateCmd(),
		newIngestCmd(),
		newSearchCmd(),
		newTagsCmd(),
		newVersionCmd(),
	)
	return root
}

// setupLogger builds the process logger from persistent flags and installs
// it as the slog default.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: jsonLogs})
	slog.SetDefault(logger)
	return logger
}

// withApp loads config, assembles the application and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	logger := setupLogger(cmd)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, cleanup, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, a)
}
