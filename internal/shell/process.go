package shell

import (
	"errors"
	"io"
	"os/exec"
	"sync"
	"syscall"
)

// ErrProcessGone means a signal target no longer exists.
var ErrProcessGone = errors.New("process gone")

// ProcessControl manages the lifetime of a spawned shell and everything it
// forked. Signals go to the whole process group so an interrupt reaches the
// foreground job, not just the shell.
type ProcessControl interface {
	Pid() int
	// Interrupt delivers SIGINT to the process group.
	Interrupt() error
	// Terminate delivers SIGTERM to the process group.
	Terminate() error
	// IsAlive reports whether the shell process still exists.
	IsAlive() bool
	// Wait reaps the process. Safe to call more than once.
	Wait() error
}

// ShellProcess is a live interactive shell with its pipes attached.
type ShellProcess struct {
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser
	ProcessControl
}

// Spawner launches an interactive shell. Substituted in tests so session
// logic runs against scripted pipes instead of a real process.
type Spawner func(command string) (*ShellProcess, error)

// SpawnShell starts command in interactive mode as the leader of a new
// process group.
func SpawnShell(command string) (*ShellProcess, error) {
	cmd := exec.Command(command, "-i")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &ShellProcess{
		Stdin:          stdin,
		Stdout:         stdout,
		Stderr:         stderr,
		ProcessControl: &processGroup{cmd: cmd},
	}, nil
}

type processGroup struct {
	cmd      *exec.Cmd
	waitOnce sync.Once
	waitErr  error
}

func (p *processGroup) Pid() int {
	return p.cmd.Process.Pid
}

func (p *processGroup) Interrupt() error {
	return p.signalGroup(syscall.SIGINT)
}

func (p *processGroup) Terminate() error {
	if err := p.signalGroup(syscall.SIGTERM); err != nil {
		if errors.Is(err, ErrProcessGone) {
			return err
		}
		// group signal failed for some other reason, kill the leader
		return p.cmd.Process.Kill()
	}
	return nil
}

func (p *processGroup) IsAlive() bool {
	return syscall.Kill(p.cmd.Process.Pid, 0) == nil
}

func (p *processGroup) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}

func (p *processGroup) signalGroup(sig syscall.Signal) error {
	pgid, err := syscall.Getpgid(p.cmd.Process.Pid)
	if err != nil {
		return ErrProcessGone
	}
	if err := syscall.Kill(-pgid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return ErrProcessGone
		}
		return err
	}
	return nil
}
