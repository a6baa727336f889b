package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/telesto-labs/chime/internal/daemon"
)

var configPath string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the chime scheduler daemon",
	Long: `Runs the scheduler in the foreground: ticks the escalation engine on the
configured interval, watches the agenda directory, and serves the control
socket for the other chime commands.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&configPath, "config", "", "config file (default <dir>/chime.yaml)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(chimeDir, 0755); err != nil {
		return fmt.Errorf("create chime dir: %w", err)
	}

	path := configPath
	if path == "" {
		path = filepath.Join(chimeDir, daemon.ConfigFileName)
	}
	cfg, err := daemon.LoadConfig(path)
	if err != nil {
		return err
	}

	d, err := daemon.New(chimeDir, cfg)
	if err != nil {
		return err
	}
	return d.Run()
}
