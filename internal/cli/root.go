// Package cli wires the agentop command surface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentop/agentop/internal/config"
)

// configFlag is the --config override for the settings file path.
var configFlag string

var rootCmd = &cobra.Command{
	Use:   "agentop",
	Short: "Terminal dashboard for local metrics and agent runtime activity",
	Long: `agentop is a live terminal dashboard. It polls local host metrics
(CPU, memory, GPU, disk, network) together with an external agent
runtime's sessions, agents, and log feed, and renders them in an
auto-refreshing TUI.

Run 'agentop start' for the interactive dashboard, or 'agentop daemon'
to keep a background monitor writing to a log file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Structured errors already carry their own suggestion text.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "settings file path (default ~/.config/agentop/config.yaml)")
}

// loadSettings loads and normalizes settings from the --config override or
// the default location.
func loadSettings() (config.Settings, error) {
	settings, err := config.Load(configFlag)
	if err != nil {
		return settings, err
	}
	settings.Normalize()
	return settings, nil
}
