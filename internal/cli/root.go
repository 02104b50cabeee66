// Package cli implements citadelctl, the administrative command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/bootstrap"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/buildconfig"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "citadelctl",
	Short: "Administer a Citadel knowledge graph",
	Long: `citadelctl migrates the PostgreSQL schema, seeds fixtures and inspects
scores and paths. It reads the same environment as the server
(STORE_BACKEND, DATABASE_URL, POLICY_PATH, ...).`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Load()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), buildconfig.VersionInfo())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.AddCommand(versionCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// NewRootCommand exposes the command tree to tests.
func NewRootCommand() *cobra.Command {
	return rootCmd
}

func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// withRuntime opens the configured engine for the duration of fn.
func withRuntime(ctx context.Context, fn func(rt *bootstrap.Runtime) error) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	rt, err := bootstrap.Open(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
