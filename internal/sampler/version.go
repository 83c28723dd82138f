package sampler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/agentop/agentop/internal/snapshot"
)

const (
	// releasesURL is the fixed endpoint for the latest-release lookup.
	releasesURL = "https://api.github.com/repos/agentop/agentop/releases/latest"

	// releaseCheckTimeout bounds the single unauthenticated GET.
	releaseCheckTimeout = 3 * time.Second

	// releaseCacheTTL is how long a lookup result is reused.
	releaseCacheTTL = 24 * time.Hour
)

// buildSuffixRe strips a trailing build-revision suffix like "-42" before
// version comparison.
var buildSuffixRe = regexp.MustCompile(`-\d+$`)

// Version samples the dashboard/runtime version strings and the remote
// latest release. The remote lookup is silent on failure: Latest stays
// empty and nothing else is affected.
type Version struct {
	dashboard string
	argv      []string
	timeout   time.Duration

	// fetch is swappable for tests; defaults to the HTTPS lookup.
	fetch func(ctx context.Context) string
}

// NewVersion creates a version sampler. dashboard is this binary's own
// version; argv is the runtime's version command.
func NewVersion(dashboard string, argv []string, timeout time.Duration) *Version {
	v := &Version{dashboard: dashboard, argv: argv, timeout: timeout}
	v.fetch = v.fetchLatest
	return v
}

// Sample returns the version reading. The runtime version command failing
// leaves Runtime empty but the reading still carries the dashboard version.
func (v *Version) Sample(ctx context.Context) snapshot.VersionReading {
	reading := snapshot.VersionReading{
		Status:    snapshot.SourceOK,
		Dashboard: v.dashboard,
	}

	if out, err := runArgv(ctx, v.timeout, v.argv); err == nil {
		reading.Runtime = StripBuildSuffix(strings.TrimSpace(out))
	}

	reading.Latest = v.fetch(ctx)
	if reading.Latest != "" && reading.Runtime != "" {
		reading.UpdateAvailable = normalizeVersion(reading.Runtime) != normalizeVersion(reading.Latest)
	}

	return reading
}

// StripBuildSuffix removes a trailing "-<digits>" build revision.
func StripBuildSuffix(version string) string {
	return buildSuffixRe.ReplaceAllString(version, "")
}

func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// releaseDoc holds the relevant field from the releases endpoint.
type releaseDoc struct {
	TagName string `json:"tag_name"`
}

// releaseCache stores a cached lookup result under the XDG cache dir.
type releaseCache struct {
	LatestVersion string    `json:"latest_version"`
	CheckedAt     time.Time `json:"checked_at"`
}

// fetchLatest returns the latest release tag, from cache when fresh,
// otherwise via one HTTPS GET. Any failure returns "".
func (v *Version) fetchLatest(ctx context.Context) string {
	if cached, err := readReleaseCache(); err == nil &&
		time.Since(cached.CheckedAt) < releaseCacheTTL {
		return cached.LatestVersion
	}

	cctx, cancel := context.WithTimeout(ctx, releaseCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, releasesURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "agentop")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var doc releaseDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return ""
	}

	_ = writeReleaseCache(&releaseCache{LatestVersion: doc.TagName, CheckedAt: time.Now()})
	return doc.TagName
}

func cachePath() (string, error) {
	dir := os.Getenv("XDG_CACHE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".cache")
	}
	return filepath.Join(dir, "agentop", "release-check"), nil
}

func readReleaseCache() (*releaseCache, error) {
	path, err := cachePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cache releaseCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

func writeReleaseCache(cache *releaseCache) error {
	path, err := cachePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(cache)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
