package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentop/agentop/internal/errors"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	d := Default()

	assert.Equal(t, CurrentSettingsVersion, d.Version)
	assert.Equal(t, 2*time.Second, d.RefreshInterval)
	assert.False(t, d.MemoryIncludeCache)
	assert.True(t, d.Show.CPU)
	assert.True(t, d.Show.Logs)
	assert.Equal(t, "/", d.Disk.Mount)
	assert.Equal(t, "all", d.LogFilter)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadMergesOverDefaults(t *testing.T) {
	// Only two keys present; everything else must come from defaults
	path := writeSettings(t, `
refresh_interval: 5s
show:
  network: false
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, s.RefreshInterval)
	assert.False(t, s.Show.Network)
	// Untouched keys fall back
	assert.True(t, s.Show.CPU)
	assert.Equal(t, "/", s.Disk.Mount)
	assert.Equal(t, []string{"agentd", "status", "--json"}, s.Runtime.StatusCommand)
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	path := writeSettings(t, `
refresh_interval: 1s
some_future_option: true
`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.RefreshInterval)
}

func TestLoadInvalidYAMLFails(t *testing.T) {
	path := writeSettings(t, "refresh_interval: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestNormalizeSnapsInterval(t *testing.T) {
	tests := []struct {
		name     string
		in       time.Duration
		expected time.Duration
	}{
		{"exact match", 5 * time.Second, 5 * time.Second},
		{"between 2s and 5s", 3 * time.Second, 2 * time.Second},
		{"below range", 200 * time.Millisecond, time.Second},
		{"above range", time.Minute, 10 * time.Second},
		{"zero uses default", 0, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			s.RefreshInterval = tt.in
			s.Normalize()
			assert.Equal(t, tt.expected, s.RefreshInterval)
		})
	}
}

func TestNormalizeFixesLogFilter(t *testing.T) {
	s := Default()
	s.LogFilter = "verbose"
	s.Normalize()
	assert.Equal(t, "all", s.LogFilter)

	s.LogFilter = "debug"
	s.Normalize()
	assert.Equal(t, "debug", s.LogFilter)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	orig := Default()
	orig.RefreshInterval = 10 * time.Second
	orig.Show.GPU = false
	orig.Runtime.SessionsFile = "/var/lib/agentd/sessions.json"

	require.NoError(t, Save(path, orig))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, loaded.RefreshInterval)
	assert.False(t, loaded.Show.GPU)
	assert.Equal(t, "/var/lib/agentd/sessions.json", loaded.Runtime.SessionsFile)
}
