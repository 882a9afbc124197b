package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/lorehq/lore/internal/config"
	"github.com/lorehq/lore/internal/daemon"
	"github.com/lorehq/lore/internal/display"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the capture daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the capture daemon in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return daemon.Run(context.Background(), cfg, true)
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		socketPath, err := config.SocketPath()
		if err != nil {
			return err
		}

		out := display.Default()
		resp, err := daemon.Send(socketPath, daemon.Request{Cmd: "shutdown"})
		if err != nil {
			out.Warning("daemon not running")
			return nil
		}
		if !resp.OK {
			out.Errorf("daemon refused to stop: %s", resp.Error)
			return nil
		}
		out.Success("daemon stopping")
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's status",
	RunE: func(cmd *cobra.Command, args []string) error {
		socketPath, err := config.SocketPath()
		if err != nil {
			return err
		}

		out := display.Default()
		resp, err := daemon.Send(socketPath, daemon.Request{Cmd: "status"})
		if err != nil {
			out.Warning("daemon not running")
			return nil
		}
		if !resp.OK {
			out.Errorf("status failed: %s", resp.Error)
			return nil
		}

		pretty, err := json.MarshalIndent(resp.Data, "", "  ")
		if err != nil {
			return err
		}
		out.Println(string(pretty))
		return nil
	},
}

var daemonReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the daemon's configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		socketPath, err := config.SocketPath()
		if err != nil {
			return err
		}

		out := display.Default()
		resp, err := daemon.Send(socketPath, daemon.Request{Cmd: "reload-config"})
		if err != nil {
			out.Warning("daemon not running")
			return nil
		}
		if !resp.OK {
			out.Errorf("reload failed: %s", resp.Error)
			return nil
		}
		out.Success("configuration reloaded")
		return nil
	},
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonReloadCmd)
	rootCmd.AddCommand(daemonCmd)
}
