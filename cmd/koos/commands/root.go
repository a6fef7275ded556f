package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "koos",
	Short: "Koos - Turn-based lattice tiling puzzle",
	Long: `Koos is a turn-based multiplayer puzzle where players tile a
three-dimensional lattice container with four-cell pieces.

The rules engine is a pure state machine; this CLI hosts it with a
solvability oracle, hint generation, automatic board repair, and an
optional Redis ledger for multiplayer session sync.`,
	Version: version,
}

func init() {
	// Errors are rendered by the printer; keep cobra from repeating them.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
