package config

import "time"

// CurrentSettingsVersion is the schema version for the settings file.
// Increment when making breaking changes to the settings structure.
const CurrentSettingsVersion = 1

// RefreshIntervals is the fixed set of allowed refresh cadences.
var RefreshIntervals = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

// Settings is the versioned agentop configuration. Files written by older
// versions load fine: missing keys fall back to defaults, unknown keys are
// ignored.
type Settings struct {
	Version int `yaml:"version" mapstructure:"version"`

	// RefreshInterval is snapped to the nearest entry of RefreshIntervals
	// by Normalize.
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`

	Show ShowSettings `yaml:"show" mapstructure:"show"`

	// MemoryIncludeCache counts OS page cache as used memory when true.
	// Default false: cache is reported separately.
	MemoryIncludeCache bool `yaml:"memory_include_cache" mapstructure:"memory_include_cache"`

	// LogFilter is the minimum severity kept in the log widget:
	// "all", "debug", "info", "warn", or "error". "debug" means exact
	// debug-level lines only.
	LogFilter string `yaml:"log_filter" mapstructure:"log_filter"`

	Disk    DiskSettings    `yaml:"disk" mapstructure:"disk"`
	Network NetworkSettings `yaml:"network" mapstructure:"network"`
	Runtime RuntimeSettings `yaml:"runtime" mapstructure:"runtime"`
}

// ShowSettings toggles each sampler. A disabled sampler is skipped entirely,
// not invoked and failed.
type ShowSettings struct {
	CPU      bool `yaml:"cpu" mapstructure:"cpu"`
	Memory   bool `yaml:"memory" mapstructure:"memory"`
	GPU      bool `yaml:"gpu" mapstructure:"gpu"`
	Disk     bool `yaml:"disk" mapstructure:"disk"`
	Network  bool `yaml:"network" mapstructure:"network"`
	Sessions bool `yaml:"sessions" mapstructure:"sessions"`
	Agents   bool `yaml:"agents" mapstructure:"agents"`
	Logs     bool `yaml:"logs" mapstructure:"logs"`
}

// DiskSettings selects the mount reported by the disk widget.
type DiskSettings struct {
	Mount string `yaml:"mount" mapstructure:"mount"`
}

// NetworkSettings selects the interface reported by the network widget.
// Empty means the first non-loopback interface with traffic.
type NetworkSettings struct {
	Interface string `yaml:"interface" mapstructure:"interface"`
}

// RuntimeSettings describes how to reach the external agent runtime.
type RuntimeSettings struct {
	// StatusCommand is invoked each tick and must print a JSON status
	// document (gateway reachability, sessions, agents).
	StatusCommand []string `yaml:"status_command" mapstructure:"status_command"`

	// LogsCommand prints recent newline-delimited log lines, newest last.
	LogsCommand []string `yaml:"logs_command" mapstructure:"logs_command"`

	// VersionCommand prints the runtime's version string.
	VersionCommand []string `yaml:"version_command" mapstructure:"version_command"`

	// SessionsFile, when set, is read each tick instead of invoking
	// StatusCommand for session data. JSON object keyed by session id.
	SessionsFile string `yaml:"sessions_file" mapstructure:"sessions_file"`

	// CommandTimeout bounds each runtime command invocation.
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`

	// LogLines bounds the number of retained log lines.
	LogLines int `yaml:"log_lines" mapstructure:"log_lines"`

	// SessionStale is how recently a session must have updated for its
	// agent to count as running.
	SessionStale time.Duration `yaml:"session_stale" mapstructure:"session_stale"`
}
