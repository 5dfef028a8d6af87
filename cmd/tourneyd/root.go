package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nerrad567/tourney-core/internal/infrastructure/config"
	"github.com/nerrad567/tourney-core/internal/infrastructure/database"
	"github.com/nerrad567/tourney-core/internal/infrastructure/logging"
	"github.com/nerrad567/tourney-core/migrations"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "tourneyd",
		Short:         "Tourney Core authentication and session service",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(opts.envFile)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", getConfigPath(), "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration (ignored if missing)")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSessionsCmd(opts),
		newUsersCmd(opts),
	)
	return root
}

// getConfigPath returns the configuration file path.
// Uses TOURNEY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TOURNEY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadEnvFile exports the variables of a dotenv file. Variables already set
// in the environment win. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// loadConfig loads the configuration and builds the logger for it.
func (o *globalOptions) loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(cfg.Logging, version)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, log, nil
}

// openDatabase opens the configured database and applies pending
// migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Debug("database ready", "path", cfg.Database.Path)
	return db, nil
}
