package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ABakker30/koospuzzlev1-sub002/internal/catalog"
	"github.com/ABakker30/koospuzzlev1-sub002/internal/config"
	"github.com/ABakker30/koospuzzlev1-sub002/internal/deps"
	"github.com/ABakker30/koospuzzlev1-sub002/internal/printer"
	"github.com/ABakker30/koospuzzlev1-sub002/pkg/engine"
)

var checkConfigPath string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that a configured game is solvable before playing it",
	Long: `Check validates the configuration, then asks the solvability oracle
whether the empty container can be tiled by the configured inventory. Useful
for vetting a new container or inventory before inviting players.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkConfigPath, "config", "c", "koos.yml", "path to the game configuration")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(checkConfigPath)
	if err != nil {
		return printer.Error("Invalid game configuration", err.Error(), nil)
	}
	spec, err := cfg.PuzzleSpec()
	if err != nil {
		return printer.Error("Invalid container", err.Error(), nil)
	}
	state, err := engine.NewGameState(cfg.SetupInput(), spec)
	if err != nil {
		return printer.Error("Invalid game setup", err.Error(), nil)
	}

	printer.Step("checking %q (%d cells)...\n", spec.Name(), spec.Size())
	bundle := deps.New(catalog.Default(), deps.Options{})
	outcome := bundle.SolvabilityCheck(context.Background(), &state)

	switch outcome.Verdict {
	case engine.Solvable:
		printer.Success("solvable (%d nodes, %dms)\n", outcome.Nodes, outcome.DurationMs)
		return nil
	case engine.Unsolvable:
		return printer.Error("Container is unsolvable with this inventory",
			"No tiling of the container exists with the configured pieces.",
			[]string{
				"Add more piece types to the inventory",
				"Raise the counts of limited pieces",
			})
	default:
		printer.Warning("verdict unknown: the search timed out after %dms (%d nodes)\n",
			outcome.DurationMs, outcome.Nodes)
		return nil
	}
}
