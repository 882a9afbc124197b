package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lorehq/lore/internal/display"
	"github.com/lorehq/lore/internal/git"
)

var hooksFooter bool

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Manage git hooks for commit-time linking",
}

var hooksInstallCmd = &cobra.Command{
	Use:   "install [repo]",
	Short: "Install the lore hooks into a repository",
	Long: `Install the lore hooks into a repository.

post-commit asks lore to link the new commit to recent sessions.
With --footer, prepare-commit-msg also appends a Lore-Sessions trailer
naming the sessions active in the worktree.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		} else if cwd, err := os.Getwd(); err == nil {
			dir = cwd
		}

		if err := git.InstallHooks(dir, hooksFooter); err != nil {
			return err
		}

		out := display.Default()
		out.Success("post-commit hook installed")
		if hooksFooter {
			out.Success("prepare-commit-msg hook installed")
		}
		return nil
	},
}

var hooksUninstallCmd = &cobra.Command{
	Use:   "uninstall [repo]",
	Short: "Remove the lore hooks from a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		} else if cwd, err := os.Getwd(); err == nil {
			dir = cwd
		}

		if err := git.UninstallHooks(dir); err != nil {
			return err
		}

		display.Default().Success("lore hooks removed")
		return nil
	},
}

func init() {
	hooksInstallCmd.Flags().BoolVar(&hooksFooter, "footer", false, "also install the commit-message footer hook")
	hooksCmd.AddCommand(hooksInstallCmd)
	hooksCmd.AddCommand(hooksUninstallCmd)
	rootCmd.AddCommand(hooksCmd)
}
