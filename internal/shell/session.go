package shell

import (
	"context"
	"sync"
	"time"
)

// Status is a point-in-time snapshot of a session.
type Status struct {
	Pid        int
	Cwd        string
	Busy       bool
	Alive      bool
	StartedAt  time.Time
	LastActive time.Time
}

// Session is one user's interactive shell: the process, the output
// aggregator, and the command lock that serializes commands through it.
type Session struct {
	OwnerID int64
	ChatID  int64

	proc       *ShellProcess
	aggregator *Aggregator
	cancel     context.CancelFunc
	tasks      sync.WaitGroup
	startedAt  time.Time

	stdinMu sync.Mutex

	mu         sync.Mutex
	cwd        string
	busy       bool
	busySince  time.Time
	lastActive time.Time
	commandID  string
}

// TryAcquire takes the command lock. Returns false if a command is already
// in flight.
func (s *Session) TryAcquire(commandID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	s.busySince = time.Now()
	s.lastActive = s.busySince
	s.commandID = commandID
	return true
}

// Release returns the command lock to idle. Reports whether a command was
// actually in flight, and for how long.
func (s *Session) Release() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busy {
		return 0, false
	}
	elapsed := time.Since(s.busySince)
	s.busy = false
	s.commandID = ""
	s.lastActive = time.Now()
	return elapsed, true
}

// Busy reports whether a command is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Cwd returns the last known working directory.
func (s *Session) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

func (s *Session) setCwd(path string) {
	s.mu.Lock()
	s.cwd = path
	s.mu.Unlock()
}

// CommandID returns the correlation ID of the in-flight command, empty
// when idle.
func (s *Session) CommandID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commandID
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// IdleFor returns how long the session has gone without activity. A busy
// session is never idle.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return 0
	}
	return time.Since(s.lastActive)
}

// Status snapshots the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Pid:        s.proc.Pid(),
		Cwd:        s.cwd,
		Busy:       s.busy,
		Alive:      s.proc.IsAlive(),
		StartedAt:  s.startedAt,
		LastActive: s.lastActive,
	}
}

// writeLine writes raw text followed by a newline into the shell's stdin.
// Writes are serialized so concurrent typed text cannot interleave bytes.
func (s *Session) writeLine(text string) error {
	s.stdinMu.Lock()
	defer s.stdinMu.Unlock()
	_, err := s.proc.Stdin.Write([]byte(text + "\n"))
	return err
}

// writeRaw writes text exactly as given.
func (s *Session) writeRaw(text string) error {
	s.stdinMu.Lock()
	defer s.stdinMu.Unlock()
	_, err := s.proc.Stdin.Write([]byte(text))
	return err
}
