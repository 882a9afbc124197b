package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lorehq/lore/internal/adapters"
	"github.com/lorehq/lore/internal/config"
	"github.com/lorehq/lore/internal/daemon"
	"github.com/lorehq/lore/internal/display"
	"github.com/lorehq/lore/internal/ingest"
)

var importPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import sessions once, without the daemon",
	Long: `Import sessions once, without the daemon.

Scans every enabled adapter's sources and merges anything new into the
store. When the daemon is running, the request is forwarded to it so the
single-writer discipline holds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := display.Default()

		// A running daemon owns the store; hand the work to it.
		if socketPath, err := config.SocketPath(); err == nil {
			req := daemon.Request{Cmd: "ingest-now"}
			if importPath != "" {
				args, _ := json.Marshal(map[string]string{"path": importPath})
				req.Args = args
			}
			if resp, err := daemon.Send(socketPath, req); err == nil {
				if !resp.OK {
					out.Errorf("daemon ingest failed: %s", resp.Error)
					return nil
				}
				out.Success("import handled by daemon")
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

		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		registry, err := adapters.NewRegistry(home, cfg.Watchers)
		if err != nil {
			return err
		}

		engine := ingest.New(store.DB, registry, cfg, zerolog.Nop())
		if importPath != "" {
			if err := engine.Ingest(context.Background(), importPath); err != nil {
				return err
			}
		} else {
			if err := engine.ScanAll(context.Background()); err != nil {
				return err
			}
		}

		stats := engine.Stats()
		out.Successf("%d message(s) imported from %d source(s)",
			stats.MessagesImported.Load(), stats.SourcesScanned.Load())
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importPath, "path", "", "import a single source file")
	rootCmd.AddCommand(importCmd)
}
