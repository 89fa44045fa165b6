package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/config"
)

var (
	cfgFile  string
	homeDir  string
	sourceDB string
	verbose  bool
	cfg      *config.Config
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatvault",
	Short: "Local message history search tool",
	Long: `chatvault builds and serves a full-text search index over a local
message database. The index is kept incrementally synchronized with
the source store and is a rebuildable cache: deleting it is always
safe.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if sourceDB != "" {
			cfg.Data.SourceDB = sourceDB
		}

		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.HomeDir, err)
		}
		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// requireSourceDB returns the configured source database path or a
// helpful error when none is configured.
func requireSourceDB() (string, error) {
	if cfg.Data.SourceDB == "" {
		return "", fmt.Errorf(
			"no source database configured; pass --source-db or set [data] source_db in %s",
			cfg.ConfigFilePath())
	}
	if _, err := os.Stat(cfg.Data.SourceDB); err != nil {
		return "", fmt.Errorf("source database %s: %w", cfg.Data.SourceDB, err)
	}
	return cfg.Data.SourceDB, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default <home>/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "chatvault home directory (default ~/.chatvault)")
	rootCmd.PersistentFlags().StringVar(&sourceDB, "source-db", "", "path to the source message database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
