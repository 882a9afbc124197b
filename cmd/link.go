package cmd

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lorehq/lore/internal/config"
	"github.com/lorehq/lore/internal/daemon"
	"github.com/lorehq/lore/internal/db"
	"github.com/lorehq/lore/internal/display"
	"github.com/lorehq/lore/internal/git"
	"github.com/lorehq/lore/internal/linker"
	"github.com/lorehq/lore/internal/models"
)

var linkFlags struct {
	commit  string
	session string
	origin  string
	repo    string
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link sessions to git commits",
	Long: `Link sessions to git commits.

With --session and --commit, records a manual link at full confidence.
With --commit alone, runs the auto-linker backward from that commit;
this is the form the post-commit hook invokes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if linkFlags.commit == "" {
			return eris.New("--commit is required")
		}

		repoPath := linkFlags.repo
		if repoPath == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			repoPath, err = git.RepoRoot(cwd)
			if err != nil {
				return err
			}
		}

		out := display.Default()

		// Manual link of a specific pair.
		if linkFlags.session != "" {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			session, err := db.GetSession(store, linkFlags.session)
			if err != nil {
				return err
			}
			commit, err := git.CommitInfo(repoPath, linkFlags.commit)
			if err != nil {
				return err
			}

			origin := models.OriginManual
			if linkFlags.origin == "hook" {
				origin = models.OriginHook
			}
			inserted, err := db.InsertLink(store, &models.SessionLink{
				SessionID:  session.ID,
				CommitSHA:  commit.SHA,
				RepoPath:   repoPath,
				Origin:     origin,
				Confidence: 1.0,
			})
			if err != nil {
				return err
			}
			if inserted {
				out.Successf("linked %s to %s", session.ID.String()[:8], commit.SHA[:12])
			} else {
				out.Info("already linked")
			}
			return nil
		}

		// Backward auto-link: prefer the daemon so its single writer owns
		// the store; fall back to a direct run when it is not up.
		if socketPath, err := config.SocketPath(); err == nil {
			args, _ := json.Marshal(map[string]string{
				"repo":   repoPath,
				"commit": linkFlags.commit,
				"origin": linkFlags.origin,
			})
			if resp, err := daemon.Send(socketPath, daemon.Request{Cmd: "link-commit", Args: args}); err == nil {
				if !resp.OK {
					return eris.New(resp.Error)
				}
				out.Success("link computed by daemon")
				return nil
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		l := linker.New(store.DB, cfg, zerolog.Nop())
		origin := models.OriginAutoBackward
		if linkFlags.origin == "hook" {
			origin = models.OriginHook
		}
		linked, err := l.LinkCommit(repoPath, linkFlags.commit, origin)
		if err != nil {
			return err
		}
		out.Successf("%d session(s) linked", linked)
		return nil
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink <session-id> <commit-sha>",
	Short: "Remove a session-commit link",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		session, err := db.GetSession(store, args[0])
		if err != nil {
			return err
		}
		if err := db.DeleteLink(store, session.ID, args[1]); err != nil {
			return err
		}

		display.Default().Success("link removed")
		return nil
	},
}

func init() {
	linkCmd.Flags().StringVar(&linkFlags.commit, "commit", "", "commit sha to link")
	linkCmd.Flags().StringVar(&linkFlags.session, "session", "", "session id for a manual link")
	linkCmd.Flags().StringVar(&linkFlags.origin, "origin", "", "link origin override (hook)")
	linkCmd.Flags().StringVar(&linkFlags.repo, "repo", "", "repository path (default: current directory's repo)")
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(unlinkCmd)
}
