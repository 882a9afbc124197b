package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lorehq/lore/internal/db"
	"github.com/lorehq/lore/internal/display"
	"github.com/lorehq/lore/internal/models"
)

var showFull bool

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's dialogue",
	Args:  cobra.ExactArgs(1),
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

		messages, err := db.GetMessages(store, session.ID)
		if err != nil {
			return err
		}

		links, err := db.GetLinksForSession(store, session.ID)
		if err != nil {
			return err
		}

		out := display.Default()
		out.Println(out.Bold(session.Tool) + "  " + session.ID.String())
		out.Printf("  started:   %s\n", session.StartedAt.Local().Format("2006-01-02 15:04:05"))
		if session.EndedAt != nil {
			out.Printf("  ended:     %s\n", session.EndedAt.Local().Format("2006-01-02 15:04:05"))
		} else {
			out.Printf("  ended:     %s\n", out.Faint("(live)"))
		}
		out.Printf("  directory: %s\n", session.WorkingDirectory)
		if session.Model != "" {
			out.Printf("  model:     %s\n", session.Model)
		}
		if len(session.BranchHistory) > 0 {
			branches := session.BranchHistory[0]
			for _, b := range session.BranchHistory[1:] {
				branches += " -> " + b
			}
			out.Printf("  branches:  %s\n", branches)
		}
		for _, link := range links {
			out.Printf("  commit:    %s %s\n", link.CommitSHA[:12], out.Faint(string(link.Origin)))
		}
		out.Println()

		for _, m := range messages {
			label := string(m.Role)
			switch m.Role {
			case models.RoleHuman:
				label = out.Bold("human")
			case models.RoleAssistant:
				label = out.Bold("assistant")
			}

			body := m.Content.Summary(120)
			if showFull {
				body = m.Content.PlainText()
				for _, b := range m.Content.Blocks {
					if b.Type == models.BlockToolUse {
						body += "\n[tool: " + b.Name + "]"
					}
				}
			}
			out.Printf("%s %s  %s\n",
				out.Faint(m.Timestamp.Local().Format("15:04:05")), label, body)
		}

		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showFull, "full", false, "print full message bodies")
	rootCmd.AddCommand(showCmd)
}
