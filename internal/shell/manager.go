package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/telsh/internal/metrics"
)

// Errors surfaced to command handlers. Each maps to a distinct user-facing
// reply.
var (
	ErrSessionExists = errors.New("session already active")
	ErrNoSession     = errors.New("no active session")
	ErrBusy          = errors.New("a command is already running")
	ErrShellDead     = errors.New("shell process has exited")
)

// ManagerConfig wires a Manager's collaborators.
type ManagerConfig struct {
	Messenger     Messenger
	Spawner       Spawner // nil means SpawnShell
	ShellCommand  string
	FlushInterval time.Duration
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
}

// Manager owns the session registry: at most one shell session per user,
// looked up by the user's ID.
type Manager struct {
	messenger     Messenger
	spawner       Spawner
	shellCommand  string
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        zerolog.Logger

	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewManager creates a manager with no sessions.
func NewManager(cfg ManagerConfig) *Manager {
	spawner := cfg.Spawner
	if spawner == nil {
		spawner = SpawnShell
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Manager{
		messenger:     cfg.Messenger,
		spawner:       spawner,
		shellCommand:  cfg.ShellCommand,
		flushInterval: interval,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger.With().Str("module", "shell").Logger(),
		sessions:      make(map[int64]*Session),
	}
}

// Start spawns a new shell session for ownerID, publishing output into
// chatID. Fails with ErrSessionExists when a live session is already
// registered; a session whose process died is torn down and replaced.
func (m *Manager) Start(ownerID, chatID int64) error {
	m.mu.Lock()
	if old, ok := m.sessions[ownerID]; ok {
		if old.proc.IsAlive() {
			m.mu.Unlock()
			return ErrSessionExists
		}
		delete(m.sessions, ownerID)
		m.mu.Unlock()
		m.teardown(old)
		if m.metrics != nil {
			m.metrics.SessionsActive.Dec()
		}
	} else {
		m.mu.Unlock()
	}

	proc, err := m.spawner(m.shellCommand)
	if err != nil {
		return fmt.Errorf("spawn shell: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "/"
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		OwnerID:    ownerID,
		ChatID:     chatID,
		proc:       proc,
		aggregator: NewAggregator(chatID, m.messenger, m.metrics, m.logger),
		cancel:     cancel,
		startedAt:  time.Now(),
		cwd:        home,
		lastActive: time.Now(),
	}

	sess.tasks.Add(3)
	go m.readStream(ctx, sess, proc.Stdout, "stdout")
	go m.readStream(ctx, sess, proc.Stderr, "stderr")
	go m.runPublisher(ctx, sess)

	// land in the home directory before the first command
	if err := sess.writeLine("cd " + home); err != nil {
		m.teardown(sess)
		return fmt.Errorf("initialize shell: %w", err)
	}

	m.mu.Lock()
	if _, ok := m.sessions[ownerID]; ok {
		m.mu.Unlock()
		m.teardown(sess)
		return ErrSessionExists
	}
	m.sessions[ownerID] = sess
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionsActive.Inc()
		m.metrics.SessionsTotal.Inc()
	}
	m.logger.Info().
		Int64("owner_id", ownerID).
		Int("pid", proc.Pid()).
		Msg("session started")

	m.sendPrompt(sess)
	return nil
}

// Dispatch runs one command line through ownerID's session. The command
// lock is taken before anything is written and released by the reader when
// the completion marker arrives.
func (m *Manager) Dispatch(ownerID int64, command string) error {
	sess, ok := m.get(ownerID)
	if !ok {
		return ErrNoSession
	}
	if !sess.proc.IsAlive() {
		return ErrShellDead
	}

	commandID := uuid.NewString()
	if !sess.TryAcquire(commandID) {
		if m.metrics != nil {
			m.metrics.BusyRejectionsTotal.Inc()
		}
		return ErrBusy
	}

	kind := "plain"
	if IsChdir(command) {
		kind = "chdir"
	}

	if err := sess.writeRaw(WrapCommand(command)); err != nil {
		sess.Release()
		return fmt.Errorf("write command: %w", err)
	}

	if m.metrics != nil {
		m.metrics.CommandsTotal.WithLabelValues(kind).Inc()
	}
	m.logger.Debug().
		Int64("owner_id", ownerID).
		Str("command_id", commandID).
		Str("kind", kind).
		Msg("command dispatched")
	return nil
}

// TypeText writes raw text plus a newline into the session's stdin without
// taking the command lock or appending markers. Meant for feeding input to
// an interactive program started by a previous command.
func (m *Manager) TypeText(ownerID int64, text string) error {
	sess, ok := m.get(ownerID)
	if !ok {
		return ErrNoSession
	}
	sess.touch()
	if err := sess.writeLine(text); err != nil {
		return fmt.Errorf("write text: %w", err)
	}
	return nil
}

// Interrupt sends SIGINT to the session's process group and releases the
// command lock regardless of whether the signal landed, so a user is never
// stuck behind a command whose process already vanished.
func (m *Manager) Interrupt(ownerID int64) error {
	sess, ok := m.get(ownerID)
	if !ok {
		return ErrNoSession
	}

	sigErr := sess.proc.Interrupt()
	sess.Release()
	sess.touch()

	if m.metrics != nil {
		m.metrics.InterruptsTotal.Inc()
	}
	m.logger.Info().Int64("owner_id", ownerID).Err(sigErr).Msg("interrupt")

	m.sendPrompt(sess)
	if sigErr != nil {
		return sigErr
	}
	return nil
}

// End terminates ownerID's session and removes it from the registry.
// Returns false when there was nothing to end.
func (m *Manager) End(ownerID int64) (bool, error) {
	m.mu.Lock()
	sess, ok := m.sessions[ownerID]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	delete(m.sessions, ownerID)
	m.mu.Unlock()

	m.teardown(sess)

	if m.metrics != nil {
		m.metrics.SessionsActive.Dec()
	}
	m.logger.Info().Int64("owner_id", ownerID).Msg("session ended")
	return true, nil
}

// Status reports on ownerID's session.
func (m *Manager) Status(ownerID int64) (Status, bool) {
	sess, ok := m.get(ownerID)
	if !ok {
		return Status{}, false
	}
	return sess.Status(), true
}

// Cwd returns the session's working directory, used to resolve relative
// paths for file transfers.
func (m *Manager) Cwd(ownerID int64) (string, bool) {
	sess, ok := m.get(ownerID)
	if !ok {
		return "", false
	}
	return sess.Cwd(), true
}

// ReapIdle ends every idle session older than maxIdle and returns the
// owner IDs it reaped. Busy sessions are left alone.
func (m *Manager) ReapIdle(maxIdle time.Duration) []int64 {
	m.mu.RLock()
	var stale []int64
	for owner, sess := range m.sessions {
		if idle := sess.IdleFor(); idle > 0 && idle >= maxIdle {
			stale = append(stale, owner)
		}
	}
	m.mu.RUnlock()

	var reaped []int64
	for _, owner := range stale {
		if ok, _ := m.End(owner); ok {
			reaped = append(reaped, owner)
		}
	}
	return reaped
}

// Shutdown ends every session. Called once when the daemon stops.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[int64]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		m.teardown(sess)
		if m.metrics != nil {
			m.metrics.SessionsActive.Dec()
		}
	}
}

func (m *Manager) get(ownerID int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[ownerID]
	return sess, ok
}

// teardown stops a session's process and waits for its goroutines. Pipes
// close when the process dies, which unblocks the readers.
func (m *Manager) teardown(sess *Session) {
	sess.cancel()
	sess.proc.Stdin.Close()
	if err := sess.proc.Terminate(); err != nil && !errors.Is(err, ErrProcessGone) {
		m.logger.Warn().Err(err).Int64("owner_id", sess.OwnerID).Msg("terminate failed")
	}
	sess.proc.Wait()
	sess.tasks.Wait()
}

// sendPrompt posts a "<cwd> $" message, mimicking a terminal prompt.
func (m *Manager) sendPrompt(sess *Session) {
	if _, err := m.messenger.SendCode(sess.ChatID, sess.Cwd()+" $"); err != nil {
		m.logger.Warn().Err(err).Int64("owner_id", sess.OwnerID).Msg("prompt send failed")
	}
}
