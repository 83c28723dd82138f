package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentop/agentop/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the monitor in the background",
	Long: `Start a detached background process that keeps sampling and writes
one summary line per tick to the daemon log.

The pidfile and log live under ~/.local/state/agentop/ (or
$XDG_STATE_HOME/agentop/).

Examples:
  agentop daemon
  agentop logs
  agentop stop`,
	RunE: func(cmd *cobra.Command, args []string) error {
		daemonArgs := []string{"start", "--headless"}
		if configFlag != "" {
			daemonArgs = append(daemonArgs, "--config", configFlag)
		}

		pid, err := daemon.Start(daemonArgs)
		if err != nil {
			return err
		}

		logPath, _ := daemon.LogFile()
		fmt.Printf("Daemon started (pid %d)\n", pid)
		fmt.Printf("Logs: %s\n", logPath)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := daemon.Stop(); err != nil {
			return err
		}
		fmt.Println("Daemon stopped.")
		return nil
	},
}

var logsLines int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent daemon log output",
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := daemon.TailLog(logsLines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of trailing lines to show")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(logsCmd)
}
