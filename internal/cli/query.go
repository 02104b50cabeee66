package cli

import (
	"fmt"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/bootstrap"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var maxHops int

var scoreCmd = &cobra.Command{
	Use:   "score <node-id>",
	Short: "Compute the Citadel Score of a node",
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

var pathCmd = &cobra.Command{
	Use:   "path <from-id> <to-id>",
	Short: "Find the shortest path between two nodes",
	Args:  cobra.ExactArgs(2),
	RunE:  runPath,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh-trust",
	Short: "Recompute verification accuracy and trust for every identity",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

func init() {
	pathCmd.Flags().IntVar(&maxHops, "max-hops", 0, "hop bound (0 uses MAX_PATH_HOPS)")
	rootCmd.AddCommand(scoreCmd, pathCmd, refreshCmd)
}

func parseNodeID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid node id %q", s)
	}
	return id, nil
}

func runScore(cmd *cobra.Command, args []string) error {
	id, err := parseNodeID(args[0])
	if err != nil {
		return err
	}
	return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
		score, err := rt.Engine.Score(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), score)
	})
}

func runPath(cmd *cobra.Command, args []string) error {
	from, err := parseNodeID(args[0])
	if err != nil {
		return err
	}
	to, err := parseNodeID(args[1])
	if err != nil {
		return err
	}
	return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
		path, err := rt.Engine.ShortestPath(cmd.Context(), from, to, maxHops)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), path)
	})
}

func runRefresh(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
		return printJSON(cmd.OutOrStdout(), rt.Refresher.RunRefresh(cmd.Context()))
	})
}
