package cmd

import (
	"github.com/spf13/cobra"

	"github.com/corvid-labs/corpus/db"
	"github.com/corvid-labs/corpus/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Applies all embedded schema migrations that have not run yet.
Other commands also migrate on startup; this exists for provisioning a
database ahead of time and for CI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogger(cmd)
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return db.Migrate(cfg.PostgresURL())
		},
	}
}
