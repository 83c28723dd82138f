package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentop/agentop/internal/daemon"
	"github.com/agentop/agentop/internal/dashboard"
	"github.com/agentop/agentop/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a one-shot snapshot of all metrics",
	Long: `Run one refresh cycle and print the result without starting the TUI.

Also reports whether the background daemon is running.

Examples:
  agentop status
  agentop status --config ./agentop.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		if pid, running := daemon.Status(); running {
			fmt.Printf("daemon: running (pid %d)\n\n", pid)
		} else {
			fmt.Print("daemon: not running\n\n")
		}

		eng := engine.NewDefault(settings, GetVersion())
		defer eng.Close()

		snap, _ := eng.Refresh(context.Background())
		dashboard.Render(os.Stdout, snap, settings)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
