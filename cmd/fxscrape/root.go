package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/epireve/currency-api/internal/config"
	"github.com/epireve/currency-api/internal/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v          *viper.Viper
	configFile string
	envFile    string

	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:   "fxscrape",
		Short: "Daily exchange-rate snapshot scraper",
		Long: `fxscrape downloads daily exchange-rate snapshots for a fixed date range and
a set of base currencies, validates them and stores them in SQLite.

Re-runs are incremental: (date, base) pairs that already have rows are skipped.
Every key can be set in a config file, a .env file, or FXSCRAPE_* variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (yaml, json or toml)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading FXSCRAPE_* variables")
	pf.String("db-path", "", "SQLite database path (default exchange_rates.db)")
	pf.String("log-level", "", "log level: debug, info, warn, error (default info)")
	pf.String("log-format", "", "log format: text or json (default text)")
	pf.String("log-file", "", "also append logs to this file")
	a.bind(cmd, map[string]string{
		"db_path":    "db-path",
		"log_level":  "log-level",
		"log_format": "log-format",
		"log_file":   "log-file",
	})

	cmd.AddCommand(newRunCmd(a), newMigrateCmd(a), newServeCmd(a))
	return cmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.v, a.configFile, a.envFile)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	a.logCloser = closer
	return nil
}

// bind maps viper keys to flags of cmd. Flags only take effect when set
// explicitly, so config files and the environment still apply.
func (a *app) bind(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		f := cmd.PersistentFlags().Lookup(flag)
		if f == nil {
			f = cmd.Flags().Lookup(flag)
		}
		if f == nil {
			panic(fmt.Sprintf("flag %q not defined", flag))
		}
		_ = a.v.BindPFlag(key, f)
	}
}
