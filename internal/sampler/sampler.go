// Package sampler wraps each external data source behind a uniform
// fetch-with-timeout, fail-soft contract. A sampler never panics past its
// boundary and never blocks longer than its timeout; any underlying failure
// maps to a reading with SourceUnavailable status. Partial readings are
// kept: a source that knows the GPU model but not its utilization still
// produced a reading.
package sampler

import (
	"context"
	"os/exec"
	"time"

	"github.com/agentop/agentop/internal/logger"
)

// DefaultCommandTimeout bounds external-process samplers independently of
// the tick interval, so one slow source degrades only its own field.
const DefaultCommandTimeout = 3 * time.Second

var log = logger.NewEnvLogger("[sampler]")

// runCmd executes a command with a timeout and returns its combined output.
func runCmd(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(cctx, name, args...).CombinedOutput()
	if cctx.Err() == context.DeadlineExceeded {
		return "", cctx.Err()
	}
	return string(out), err
}

// runArgv executes an argv-style command line ({"agentd", "status"}).
func runArgv(ctx context.Context, timeout time.Duration, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", exec.ErrNotFound
	}
	return runCmd(ctx, timeout, argv[0], argv[1:]...)
}
