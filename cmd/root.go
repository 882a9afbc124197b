package cmd

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lore",
	Short: "Capture AI coding sessions and link them to git history",
	Long: `lore preserves the reasoning behind code changes. It watches the
session logs your AI coding assistants already write, stores every
conversation durably, and links sessions to the git commits they produced.

Examples:
  lore daemon start            # Start the capture daemon
  lore import                  # One-shot import of existing sessions
  lore sessions                # List captured sessions
  lore show <id>               # Show one session's dialogue
  lore link --commit <sha>     # Find the sessions behind a commit
  lore hooks install           # Install git hooks in this repository`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", eris.ToString(err, true))
		os.Exit(1)
	}
}
