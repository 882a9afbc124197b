package cmd

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lorehq/lore/internal/config"
	"github.com/lorehq/lore/internal/daemon"
	"github.com/lorehq/lore/internal/db"
	"github.com/lorehq/lore/internal/display"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := display.Default()

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := db.GetStats(store, store.Path)
		if err != nil {
			return err
		}

		out.Println(out.Bold("store"))
		out.Printf("  path:     %s\n", store.Path)
		out.Printf("  sessions: %d\n", stats.Sessions)
		out.Printf("  messages: %d\n", stats.Messages)
		out.Printf("  links:    %d\n", stats.Links)
		out.Printf("  size:     %s\n", humanize.Bytes(uint64(stats.SizeBytes)))
		out.Println()

		out.Println(out.Bold("daemon"))
		socketPath, err := config.SocketPath()
		if err != nil {
			return err
		}
		resp, err := daemon.Send(socketPath, daemon.Request{Cmd: "status"})
		if err != nil {
			out.Printf("  %s\n", out.Faint("not running"))
			return nil
		}
		if !resp.OK {
			out.Errorf("status failed: %s", resp.Error)
			return nil
		}
		if data, ok := resp.Data.(map[string]interface{}); ok {
			for _, key := range []string{"pid", "uptime_seconds", "watched_roots", "sessions_imported", "messages_imported", "links_created", "errors"} {
				if v, ok := data[key]; ok {
					out.Printf("  %-18s %v\n", key+":", v)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
