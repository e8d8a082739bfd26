package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/harun/telsh/internal/config"
	"github.com/harun/telsh/internal/history"
	"github.com/harun/telsh/internal/logger"
	"github.com/harun/telsh/internal/metrics"
	"github.com/harun/telsh/internal/shell"
	"github.com/harun/telsh/internal/telegram"
	"github.com/harun/telsh/internal/transfer"
)

// Daemon represents the telsh daemon service
type Daemon struct {
	logger  *logger.Logger
	metrics *metrics.Metrics

	// Live configuration, swapped by the config watcher
	cfgMu      sync.RWMutex
	config     *config.Config
	configPath string

	// Core modules
	shellMgr  *shell.Manager
	reaper    *shell.Reaper
	historyDB *history.Store
	transfers *transfer.Runner

	// Telegram
	bot       *telegram.Bot
	commands  *telegram.Commands
	handler   *telegram.Handler
	media     *telegram.Media
	messenger *telegram.Messenger

	// Internal
	lifecycle  *LifecycleManager
	watcher    *config.Watcher
	metricsSrv *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// Status describes the daemon at a point in time
type Status struct {
	Running   bool
	PID       int
	Uptime    time.Duration
	StartTime time.Time
}

// New creates a new daemon instance
func New(cfg *config.Config, configPath string, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		logger:     log,
		config:     cfg,
		configPath: configPath,
		ctx:        ctx,
		cancel:     cancel,
	}

	if err := d.initializeModules(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize modules: %w", err)
	}

	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// initializeModules initializes all modules in dependency order
func (d *Daemon) initializeModules() error {
	cfg := d.Config()

	d.metrics = metrics.New()
	d.logger.Info().Msg("Metrics registry initialized")

	bot, err := telegram.New(cfg.Telegram.BotToken, d.Authorized, d.logger, d.metrics)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}
	d.bot = bot
	d.messenger = telegram.NewMessenger(bot, d.metrics)
	d.logger.Info().Msg("Telegram transport initialized")

	d.shellMgr = shell.NewManager(shell.ManagerConfig{
		Messenger:     d.messenger,
		ShellCommand:  cfg.Shell.Command,
		FlushInterval: time.Duration(cfg.Shell.FlushInterval) * time.Second,
		Metrics:       d.metrics,
		Logger:        d.logger.GetZerolog(),
	})
	d.logger.Info().Str("shell", cfg.Shell.Command).Msg("Session manager initialized")

	if cfg.Shell.HistoryEnabled {
		store, err := history.NewStore(history.Config{
			DBPath: filepath.Join(cfg.DataDir, "history.db"),
			Logger: d.logger.GetZerolog(),
		})
		if err != nil {
			return fmt.Errorf("failed to create history store: %w", err)
		}
		d.historyDB = store
		d.logger.Info().Msg("History store initialized")
	}

	d.transfers = transfer.NewRunner(transfer.Config{
		Binary:       cfg.Transfer.Binary,
		EditInterval: time.Duration(cfg.Transfer.EditInterval) * time.Second,
		Messenger:    d.messenger,
		Metrics:      d.metrics,
		Logger:       d.logger.GetZerolog(),
	})
	d.logger.Info().Str("binary", cfg.Transfer.Binary).Msg("Transfer runner initialized")

	idleTimeout := time.Duration(cfg.Shell.IdleTimeout) * time.Minute
	d.reaper = shell.NewReaper(d.shellMgr, idleTimeout, d.notifySessionReaped, d.logger.GetZerolog())
	d.logger.Info().Dur("idle_timeout", idleTimeout).Msg("Session reaper initialized")

	d.registerHandlers()
	d.logger.Info().Msg("Command handlers registered")

	return nil
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	d.logger.Info().Msg("Starting telsh daemon")

	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.reaper.Start(); err != nil {
		return fmt.Errorf("failed to start session reaper: %w", err)
	}
	d.logger.Info().Msg("Session reaper started")

	if d.configPath != "" {
		watcher, err := config.NewWatcher(d.configPath, d.applyConfig)
		if err != nil {
			d.logger.Warn().Err(err).Msg("Failed to create config watcher, hot reload disabled")
		} else if err := watcher.Start(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to start config watcher, hot reload disabled")
		} else {
			d.watcher = watcher
			d.logger.Info().Msg("Config watcher started")
		}
	}

	if cfg := d.Config(); cfg.Metrics.Enabled {
		if err := d.startMetricsServer(cfg); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if err := d.bot.Start(); err != nil {
		return fmt.Errorf("failed to start telegram bot: %w", err)
	}
	d.logger.Info().Msg("Telegram bot started")

	if err := d.commands.PublishMenu(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to publish command menu")
	}

	d.logger.Info().Msg("Daemon started successfully")
	return nil
}

// Stop stops the daemon service gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info().Msg("Stopping telsh daemon")

	if err := d.bot.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop telegram bot")
	}

	if d.watcher != nil {
		d.watcher.Stop()
	}

	d.reaper.Stop()

	d.transfers.Shutdown()
	d.logger.Info().Msg("Transfers stopped")

	d.shellMgr.Shutdown()
	d.logger.Info().Msg("Shell sessions ended")

	if d.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsSrv.Shutdown(shutdownCtx); err != nil {
			d.logger.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}

	if d.historyDB != nil {
		if err := d.historyDB.Close(); err != nil {
			d.logger.Error().Err(err).Msg("Failed to close history store")
		}
	}

	if err := d.lifecycle.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	d.cancel()
	d.wg.Wait()

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// Wait blocks until the daemon's context is cancelled
func (d *Daemon) Wait() {
	<-d.ctx.Done()
}

// Status returns the daemon's status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:   d.running,
		StartTime: d.startTime,
	}
	if d.running {
		status.Uptime = time.Since(d.startTime)
	}
	return status
}

// Config returns the current configuration
func (d *Daemon) Config() *config.Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.config
}

// Authorized reports whether a user may talk to the bot, against the live
// allowlist.
func (d *Daemon) Authorized(userID int64) bool {
	return d.Config().Authorized(userID)
}

// applyConfig takes a freshly reloaded config. Only the allowlist is
// picked up live; everything else needs a restart.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.cfgMu.Lock()
	d.config.Telegram.Allowlist = cfg.Telegram.Allowlist
	d.cfgMu.Unlock()

	d.logger.Info().
		Int("allowlist", len(cfg.Telegram.Allowlist)).
		Msg("Allowlist reloaded")
}

// startMetricsServer exposes /metrics on the configured address.
func (d *Daemon) startMetricsServer(cfg *config.Config) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())

	addr := net.JoinHostPort(cfg.Metrics.Host, strconv.Itoa(cfg.Metrics.Port))
	d.metricsSrv = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.metricsSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			d.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	d.logger.Info().Str("addr", addr).Msg("Metrics server started")
	return nil
}

// notifySessionReaped tells the owner their idle session was closed.
func (d *Daemon) notifySessionReaped(ownerID int64) {
	if err := d.messenger.SendText(ownerID, "session closed after being idle, /start to open a new one"); err != nil {
		d.logger.Warn().Err(err).Int64("owner_id", ownerID).Msg("Reap notice failed")
	}
}

// GetShellManager returns the session manager
func (d *Daemon) GetShellManager() *shell.Manager {
	return d.shellMgr
}

// GetHistory returns the history store, nil when disabled
func (d *Daemon) GetHistory() *history.Store {
	return d.historyDB
}
