package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "chime",
	Short: "chime - deadline escalation scheduler",
	Long: `chime watches an agenda of deadlined tasks and escalates each one
through its policy's tiers: messages first, then louder notifications as the
deadline approaches or passes.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var chimeDir string

func init() {
	rootCmd.PersistentFlags().StringVar(&chimeDir, "dir", defaultChimeDir(), "chime state directory")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(agendaCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func defaultChimeDir() string {
	if dir := os.Getenv("CHIME_DIR"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".chime"
	}
	return filepath.Join(homeDir, ".chime")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the chime version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chime %s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
