package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/agentop/agentop/internal/errors"
)

const (
	// SettingsDir is the directory under the user config root.
	SettingsDir = "agentop"
	// SettingsFileName is the settings file name.
	SettingsFileName = "config.yaml"
)

// Default returns the built-in settings used when no file exists.
func Default() Settings {
	return Settings{
		Version:            CurrentSettingsVersion,
		RefreshInterval:    2 * time.Second,
		MemoryIncludeCache: false,
		LogFilter:          "all",
		Show: ShowSettings{
			CPU:      true,
			Memory:   true,
			GPU:      true,
			Disk:     true,
			Network:  true,
			Sessions: true,
			Agents:   true,
			Logs:     true,
		},
		Disk:    DiskSettings{Mount: "/"},
		Network: NetworkSettings{},
		Runtime: RuntimeSettings{
			StatusCommand:  []string{"agentd", "status", "--json"},
			LogsCommand:    []string{"agentd", "logs", "--tail", "200"},
			VersionCommand: []string{"agentd", "--version"},
			CommandTimeout: 3 * time.Second,
			LogLines:       200,
			SessionStale:   2 * time.Minute,
		},
	}
}

// Path returns the default settings file location,
// ~/.config/agentop/config.yaml (respecting XDG_CONFIG_HOME).
func Path() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot determine home directory",
				"Set XDG_CONFIG_HOME or HOME")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, SettingsDir, SettingsFileName), nil
}

// Load reads settings from path, merged over defaults so files from older
// versions with missing keys load silently. An empty path uses the default
// location; a missing file at the default location is not an error.
func Load(path string) (Settings, error) {
	explicit := path != ""
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return Default(), err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			if explicit {
				return Default(), errors.WrapWithCode(err, errors.ErrConfig,
					"Settings file not found: "+path,
					"Run 'agentop init' to create one, or check the --config path")
			}
			return Default(), nil
		}
		return Default(), errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read settings file",
			"Check the file is valid YAML")
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Default(), errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to parse settings file",
			"Run 'agentop init' to regenerate it")
	}

	s.Normalize()
	return s, nil
}

// Save writes settings as YAML to path, creating parent directories.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot create settings directory",
			"Check directory permissions")
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot encode settings", "")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write settings file: "+path,
			"Check file permissions")
	}
	return nil
}

// Normalize snaps the refresh interval to the nearest allowed value and
// fixes out-of-range fields in place.
func (s *Settings) Normalize() {
	if s.Version == 0 {
		s.Version = CurrentSettingsVersion
	}

	s.RefreshInterval = snapInterval(s.RefreshInterval)

	switch s.LogFilter {
	case "all", "debug", "info", "warn", "error":
	default:
		s.LogFilter = "all"
	}

	if s.Disk.Mount == "" {
		s.Disk.Mount = "/"
	}
	if s.Runtime.CommandTimeout <= 0 {
		s.Runtime.CommandTimeout = 3 * time.Second
	}
	if s.Runtime.LogLines <= 0 {
		s.Runtime.LogLines = 200
	}
	if s.Runtime.SessionStale <= 0 {
		s.Runtime.SessionStale = 2 * time.Minute
	}
}

// snapInterval returns the allowed refresh interval closest to d.
func snapInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return 2 * time.Second
	}
	best := RefreshIntervals[0]
	bestDiff := absDuration(d - best)
	for _, candidate := range RefreshIntervals[1:] {
		if diff := absDuration(d - candidate); diff < bestDiff {
			best = candidate
			bestDiff = diff
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// setDefaults registers every key so missing/new keys in persisted files
// fall back silently rather than failing a schema check.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("version", d.Version)
	v.SetDefault("refresh_interval", d.RefreshInterval)
	v.SetDefault("memory_include_cache", d.MemoryIncludeCache)
	v.SetDefault("log_filter", d.LogFilter)
	v.SetDefault("show.cpu", d.Show.CPU)
	v.SetDefault("show.memory", d.Show.Memory)
	v.SetDefault("show.gpu", d.Show.GPU)
	v.SetDefault("show.disk", d.Show.Disk)
	v.SetDefault("show.network", d.Show.Network)
	v.SetDefault("show.sessions", d.Show.Sessions)
	v.SetDefault("show.agents", d.Show.Agents)
	v.SetDefault("show.logs", d.Show.Logs)
	v.SetDefault("disk.mount", d.Disk.Mount)
	v.SetDefault("network.interface", d.Network.Interface)
	v.SetDefault("runtime.status_command", d.Runtime.StatusCommand)
	v.SetDefault("runtime.logs_command", d.Runtime.LogsCommand)
	v.SetDefault("runtime.version_command", d.Runtime.VersionCommand)
	v.SetDefault("runtime.sessions_file", d.Runtime.SessionsFile)
	v.SetDefault("runtime.command_timeout", d.Runtime.CommandTimeout)
	v.SetDefault("runtime.log_lines", d.Runtime.LogLines)
	v.SetDefault("runtime.session_stale", d.Runtime.SessionStale)
}
