package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LifecycleManager owns the daemon PID file so that the CLI can find,
// stop, and refuse to double-start a running instance.
type LifecycleManager struct {
	daemon  *Daemon
	pidFile string
}

func NewLifecycleManager(daemon *Daemon) *LifecycleManager {
	return &LifecycleManager{
		daemon:  daemon,
		pidFile: filepath.Join(daemon.Config().DataDir, "telsh.pid"),
	}
}

// Start claims the PID file. It fails when another live daemon already
// holds it, and silently replaces a stale file left by a crashed one.
func (lm *LifecycleManager) Start() error {
	if err := os.MkdirAll(filepath.Dir(lm.pidFile), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if pid, err := lm.GetPID(); err == nil && lm.IsRunning(pid) {
		return fmt.Errorf("daemon already running with PID %d", pid)
	}

	return lm.writePIDFile()
}

func (lm *LifecycleManager) Stop() error {
	if err := os.Remove(lm.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

func (lm *LifecycleManager) writePIDFile() error {
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(lm.pidFile, []byte(pid), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// GetPID reads the PID recorded in the PID file.
func (lm *LifecycleManager) GetPID() (int, error) {
	data, err := os.ReadFile(lm.pidFile)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file contents: %w", err)
	}
	return pid, nil
}

// IsRunning reports whether a process with the given PID exists.
func (lm *LifecycleManager) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// PIDFile returns the path of the PID file.
func (lm *LifecycleManager) PIDFile() string {
	return lm.pidFile
}
