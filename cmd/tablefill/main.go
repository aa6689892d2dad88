package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmrzaf/tablefill/internal/app"
	"github.com/mmrzaf/tablefill/internal/config"
	"github.com/mmrzaf/tablefill/internal/infra/repos/runs"
	"github.com/mmrzaf/tablefill/internal/infra/repos/schemas"
	"github.com/mmrzaf/tablefill/internal/infra/repos/targets"
	"github.com/mmrzaf/tablefill/internal/logging"
	"github.com/mmrzaf/tablefill/internal/registry"
)

var (
	configPath string
	schemaDir  string
	targetsDir string
	runsDBPath string
	logLevel   string
	localeCode string

	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tablefill",
		Short:         "Schema-aware synthetic data generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			flags := cmd.Flags()
			if flags.Changed("schema-dir") {
				cfg.SchemaDir = schemaDir
			}
			if flags.Changed("targets-dir") {
				cfg.TargetsDir = targetsDir
			}
			if flags.Changed("runs-db") {
				cfg.RunsDBPath = runsDBPath
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("locale") {
				cfg.Locale = localeCode
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default ./tablefill.yaml)")
	pf.StringVar(&schemaDir, "schema-dir", ".", "Directory scanned for CREATE TABLE scripts")
	pf.StringVar(&targetsDir, "targets-dir", "./targets", "Target profiles directory")
	pf.StringVar(&runsDBPath, "runs-db", "./tablefill-runs.sqlite", "Run history database path")
	pf.StringVar(&logLevel, "log-level", "info", "Log level")
	pf.StringVar(&localeCode, "locale", "au", "Locale pack")

	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(populateCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(targetCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *logging.Logger {
	return logging.NewLogger(cfg.LogLevel)
}

// openHistory opens the run history database, which also stores saved target
// profiles and their checks.
func openHistory() (*runs.SQLiteRepository, error) {
	repo := runs.NewSQLiteRepository(cfg.RunsDBPath)
	if err := repo.Init(); err != nil {
		return nil, err
	}
	return repo, nil
}

// targetRepos returns the saved-profile store and the chain that looks up
// saved profiles before profile files.
func targetRepos(history *runs.SQLiteRepository, logger *logging.Logger) (*targets.SQLiteRepository, targets.Chain) {
	saved := targets.NewSQLiteRepository(history.DB())
	return saved, targets.Chain{saved, targets.NewFileRepository(cfg.TargetsDir, logger)}
}

func newService(history *runs.SQLiteRepository, logger *logging.Logger) *app.PopulateService {
	_, chain := targetRepos(history, logger)
	return app.NewPopulateService(
		schemas.NewFileRepository(cfg.SchemaDir, logger),
		chain,
		history,
		registry.DefaultGeneratorRegistry(),
		app.SettingsFromConfig(cfg),
		logger,
	)
}
