package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agentop/agentop/internal/dashboard"
	"github.com/agentop/agentop/internal/engine"
	"github.com/agentop/agentop/internal/errors"
)

var startHeadless bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the interactive dashboard",
	Long: `Start the live dashboard in the current terminal.

Keyboard shortcuts:
  q / Ctrl+C  Quit
  r           Refresh now
  Space       Pause / resume auto refresh
  f           Cycle log filter
  ?           Show help

Examples:
  agentop start
  agentop start --config ./agentop.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if startHeadless {
			return runHeadless()
		}
		return startDashboard()
	},
}

func init() {
	startCmd.Flags().BoolVar(&startHeadless, "headless", false, "run without a TUI, logging one summary line per tick")
	startCmd.Flags().MarkHidden("headless")
	rootCmd.AddCommand(startCmd)
}

// startDashboard runs the TUI until the user quits.
func startDashboard() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New(errors.ErrConfig,
			"Standard output is not a terminal",
			"Use 'agentop status' for one-shot output, or 'agentop daemon' for background monitoring")
	}

	// Pin the color profile before any styles render.
	lipgloss.SetColorProfile(termenv.ColorProfile())

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	eng := engine.NewDefault(settings, GetVersion())
	defer eng.Close()

	p := tea.NewProgram(dashboard.NewModel(eng), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrRender,
			"The dashboard terminated unexpectedly", "")
	}
	return nil
}

// runHeadless drives the engine on a plain ticker, writing one summary line
// per tick. This is the body of the background daemon process.
func runHeadless() error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	eng := engine.NewDefault(settings, GetVersion())
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(settings.RefreshInterval)
	defer ticker.Stop()

	fmt.Printf("agentop %s headless, refreshing every %s\n", GetVersion(), settings.RefreshInterval)

	for {
		snap, committed := eng.Refresh(ctx)
		if committed && snap != nil {
			fmt.Printf("%s cpu=%.1f%% mem=%.1f%% sessions=%d reachable=%t\n",
				snap.Taken.Format(time.RFC3339),
				snap.CPU.Percent, snap.Memory.UsedPercent,
				len(snap.Runtime.Sessions), snap.Runtime.Reachable)
		}

		select {
		case <-ctx.Done():
			fmt.Println("agentop headless stopping")
			return nil
		case <-ticker.C:
		}
	}
}
