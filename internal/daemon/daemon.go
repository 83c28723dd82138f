// Package daemon manages the background dashboard process: a detached
// re-exec of the binary with a pidfile and a log file under the XDG state
// directory.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/agentop/agentop/internal/errors"
	"github.com/agentop/agentop/internal/logger"
)

var log = logger.NewEnvLogger("[daemon]")

// StateDir returns the directory holding the pidfile and log file.
func StateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "agentop"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrDaemon,
			"Cannot determine home directory", "")
	}
	return filepath.Join(home, ".local", "state", "agentop"), nil
}

// PidFile returns the pidfile path.
func PidFile() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "agentop.pid"), nil
}

// LogFile returns the daemon log path.
func LogFile() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "agentop.log"), nil
}

// Start re-execs the current binary detached with the given arguments,
// routing stdout and stderr to the log file. Returns the child pid.
func Start(args []string) (int, error) {
	if pid, running := Status(); running {
		return 0, errors.New(errors.ErrDaemon,
			fmt.Sprintf("Daemon already running (pid %d)", pid),
			"Stop it first with 'agentop stop'")
	}

	self, err := os.Executable()
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrDaemon,
			"Cannot locate the agentop binary", "")
	}

	dir, err := StateDir()
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrDaemon,
			"Cannot create state directory: "+dir,
			"Check directory permissions")
	}

	logPath := filepath.Join(dir, "agentop.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrDaemon,
			"Cannot open log file: "+logPath, "")
	}
	defer logFile.Close()

	cmd := exec.Command(self, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrDaemon,
			"Failed to start the background process", "")
	}

	pid := cmd.Process.Pid
	if err := WritePid(filepath.Join(dir, "agentop.pid"), pid); err != nil {
		return pid, err
	}

	// Detach: the child keeps running after we return.
	if err := cmd.Process.Release(); err != nil {
		log.Warn("release child process: %v", err)
	}
	return pid, nil
}

// Stop signals the running daemon with SIGTERM and removes the pidfile.
func Stop() error {
	pidPath, err := PidFile()
	if err != nil {
		return err
	}

	pid, err := ReadPid(pidPath)
	if err != nil {
		return err
	}

	if !Alive(pid) {
		os.Remove(pidPath)
		return errors.New(errors.ErrDaemon,
			fmt.Sprintf("Stale pidfile for pid %d, process not running", pid),
			"The pidfile has been cleaned up")
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return errors.WrapWithCode(err, errors.ErrDaemon,
			fmt.Sprintf("Failed to signal pid %d", pid), "")
	}

	os.Remove(pidPath)
	return nil
}

// Status reports the recorded pid and whether that process is alive.
func Status() (int, bool) {
	pidPath, err := PidFile()
	if err != nil {
		return 0, false
	}
	pid, err := ReadPid(pidPath)
	if err != nil {
		return 0, false
	}
	return pid, Alive(pid)
}

// WritePid records a pid to the given path.
func WritePid(path string, pid int) error {
	data := strconv.Itoa(pid) + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrDaemon,
			"Cannot write pidfile: "+path, "")
	}
	return nil
}

// ReadPid parses the pid recorded at path.
func ReadPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.New(errors.ErrDaemon,
				"No daemon pidfile found",
				"Start the daemon with 'agentop daemon'")
		}
		return 0, errors.WrapWithCode(err, errors.ErrDaemon,
			"Cannot read pidfile: "+path, "")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errors.New(errors.ErrDaemon,
			"Malformed pidfile: "+path,
			"Remove it and restart the daemon")
	}
	return pid, nil
}

// Alive reports whether the process with the given pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// Signal 0 probes existence without delivering anything.
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

// TailLog returns up to n trailing lines of the daemon log.
func TailLog(n int) ([]string, error) {
	path, err := LogFile()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrDaemon,
				"No daemon log found at "+path,
				"Start the daemon with 'agentop daemon' first")
		}
		return nil, errors.WrapWithCode(err, errors.ErrDaemon,
			"Cannot read log file: "+path, "")
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
