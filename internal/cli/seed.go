package cli

import (
	"fmt"
	"os"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/bootstrap"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/seed"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load identities, claims, evidence and votes from a YAML fixture",
	Long: `Seed applies a fixture to the configured store and prints the ids it
created, keyed by the fixture's names.

Example:
  STORE_BACKEND=postgres citadelctl seed fixtures/harbor.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	fx, err := seed.Parse(raw)
	if err != nil {
		return err
	}

	return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
		res, err := seed.Apply(cmd.Context(), rt.Engine, fx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	})
}
