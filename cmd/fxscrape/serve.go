package main

import (
	"github.com/spf13/cobra"

	"github.com/epireve/currency-api/internal/metrics"
	"github.com/epireve/currency-api/internal/platform/sqlite"
	raterepo "github.com/epireve/currency-api/internal/repository/rate"
	runrepo "github.com/epireve/currency-api/internal/repository/run"
	"github.com/epireve/currency-api/internal/run"
	"github.com/epireve/currency-api/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and run history over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := sqlite.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			runSvc := run.NewService(runrepo.NewRepository(db.DB), a.logger)
			handler := server.NewHandler(runSvc, raterepo.NewRepository(db.DB), metrics.New(), a.logger)

			srv := server.New(cmd.Context(), ":"+a.cfg.Port, handler, a.logger)
			if err := srv.Run(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().String("port", "", "listen port (default 8080)")
	a.bind(cmd, map[string]string{"port": "port"})
	return cmd
}
