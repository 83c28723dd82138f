package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/agentop/agentop/internal/config"
	"github.com/agentop/agentop/internal/errors"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the agentop settings file interactively",
	Long: `Walk through the dashboard settings and write the config file.

Writes to ~/.config/agentop/config.yaml unless --config points elsewhere.

Examples:
  agentop init
  agentop init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(initForce)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing settings file")
	rootCmd.AddCommand(initCmd)
}

func initCommand(force bool) error {
	path := configFlag
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil && !force {
		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Settings file '%s' already exists. Overwrite?", path)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	settings := config.Default()

	interval := settings.RefreshInterval.String()
	sources := []string{"cpu", "memory", "gpu", "disk", "network", "sessions", "agents", "logs"}
	selected := append([]string(nil), sources...)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Refresh interval").
				Description("How often the dashboard samples all sources").
				Options(
					huh.NewOption("1 second", "1s"),
					huh.NewOption("2 seconds", "2s"),
					huh.NewOption("5 seconds", "5s"),
					huh.NewOption("10 seconds", "10s"),
				).
				Value(&interval),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Visible widgets").
				Description("Deselected sources are skipped entirely, not sampled").
				Options(huh.NewOptions(sources...)...).
				Value(&selected),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Log filter").
				Description("'debug' shows exact debug lines only; others are minimum severity").
				Options(huh.NewOptions("all", "debug", "info", "warn", "error")...).
				Value(&settings.LogFilter),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Count OS page cache as used memory?").
				Description("Off reports cache separately from application memory").
				Value(&settings.MemoryIncludeCache),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input", "")
	}

	d, err := time.ParseDuration(interval)
	if err == nil {
		settings.RefreshInterval = d
	}

	show := map[string]bool{}
	for _, s := range selected {
		show[s] = true
	}
	settings.Show.CPU = show["cpu"]
	settings.Show.Memory = show["memory"]
	settings.Show.GPU = show["gpu"]
	settings.Show.Disk = show["disk"]
	settings.Show.Network = show["network"]
	settings.Show.Sessions = show["sessions"]
	settings.Show.Agents = show["agents"]
	settings.Show.Logs = show["logs"]

	settings.Normalize()

	if err := config.Save(path, settings); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Start the dashboard with 'agentop start'.")
	return nil
}
