package main

import (
	"github.com/spf13/cobra"

	"github.com/epireve/currency-api/internal/platform/sqlite"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := sqlite.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			// Open already migrated; this reports the resulting version.
			version, err := sqlite.Migrate(cmd.Context(), db.DB)
			if err != nil {
				return err
			}
			a.logger.Info("database is up to date", "path", a.cfg.DBPath, "version", version)
			return nil
		},
	}
}
