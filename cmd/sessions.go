package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorehq/lore/internal/config"
	"github.com/lorehq/lore/internal/db"
	"github.com/lorehq/lore/internal/display"
	"github.com/lorehq/lore/internal/models"
)

var sessionsFlags struct {
	tool    string
	dir     string
	tag     string
	current bool
	ids     bool
	limit   int
	since   string
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List captured sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		filter := db.ListFilter{
			Tool:  sessionsFlags.tool,
			Tag:   sessionsFlags.tag,
			Limit: sessionsFlags.limit,
		}
		if sessionsFlags.dir != "" {
			filter.WorkingDirectory = sessionsFlags.dir
		}
		if sessionsFlags.current {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			filter.WorkingDirectory = cwd
		}
		if sessionsFlags.since != "" {
			since, err := time.Parse("2006-01-02", sessionsFlags.since)
			if err != nil {
				return fmt.Errorf("invalid --since date %q (want YYYY-MM-DD)", sessionsFlags.since)
			}
			filter.Since = &since
		}

		var sessions []*models.Session
		if sessionsFlags.current && sessionsFlags.ids {
			// The prepare-commit-msg hook wants the sessions active in
			// this worktree within the auto-link window.
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			now := time.Now()
			sessions, err = db.FindSessionsActiveDuring(store, now.Add(-cfg.Window()), now, filter.WorkingDirectory)
			if err != nil {
				return err
			}
		} else {
			var err error
			sessions, err = db.ListSessions(store, filter)
			if err != nil {
				return err
			}
		}

		out := display.Default()

		if sessionsFlags.ids {
			// Machine-readable form consumed by the prepare-commit-msg
			// hook.
			ids := make([]string, len(sessions))
			for i, s := range sessions {
				ids[i] = s.ID.String()[:8]
			}
			out.Println(strings.Join(ids, ", "))
			return nil
		}

		if len(sessions) == 0 {
			out.Info("no sessions captured yet")
			return nil
		}

		out.Printf("%-10s %-12s %-18s %-9s %s\n",
			out.Bold("ID"), out.Bold("TOOL"), out.Bold("STARTED"), out.Bold("MESSAGES"), out.Bold("DIRECTORY"))
		for _, s := range sessions {
			state := ""
			if !s.Finalised() {
				state = " (live)"
			}
			out.Printf("%-10s %-12s %-18s %-9d %s%s\n",
				s.ID.String()[:8],
				s.Tool,
				s.StartedAt.Local().Format("2006-01-02 15:04"),
				s.MessageCount,
				shortenPath(s.WorkingDirectory),
				out.Faint(state),
			)
		}
		return nil
	},
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if models.PathHasPrefix(path, home) {
		return "~" + strings.TrimPrefix(path, home)
	}
	return path
}

func openStore() (*storeHandle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, err
	}
	store, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &storeHandle{DB: store, Path: dbPath}, nil
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsFlags.tool, "tool", "", "filter by tool name")
	sessionsCmd.Flags().StringVar(&sessionsFlags.dir, "dir", "", "filter by working directory")
	sessionsCmd.Flags().StringVar(&sessionsFlags.tag, "tag", "", "filter by tag label")
	sessionsCmd.Flags().BoolVar(&sessionsFlags.current, "current", false, "only sessions in the current directory")
	sessionsCmd.Flags().BoolVar(&sessionsFlags.ids, "ids", false, "print session id prefixes only")
	sessionsCmd.Flags().IntVar(&sessionsFlags.limit, "limit", 20, "maximum sessions to list")
	sessionsCmd.Flags().StringVar(&sessionsFlags.since, "since", "", "only sessions started after this date (YYYY-MM-DD)")
	rootCmd.AddCommand(sessionsCmd)
}
