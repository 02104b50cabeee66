package cli

import (
	"fmt"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/bootstrap"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/config"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema",
	Long: `Applies the embedded schema to DATABASE_URL. Every statement is
idempotent, so running it against an up to date database is a no-op.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pool, err := bootstrap.OpenPool(ctx, config.DatabaseURL())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
	return nil
}
