package shell

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Reaper ends sessions that have sat idle past a configured timeout, so an
// abandoned shell does not linger forever. A zero timeout disables reaping.
type Reaper struct {
	manager *Manager
	maxIdle time.Duration
	notify  func(ownerID int64)
	logger  zerolog.Logger
	cron    *cron.Cron
}

// NewReaper builds a reaper sweeping every five minutes. notify, if not
// nil, is called for each reaped owner so the user can be told their
// session expired.
func NewReaper(manager *Manager, maxIdle time.Duration, notify func(int64), logger zerolog.Logger) *Reaper {
	return &Reaper{
		manager: manager,
		maxIdle: maxIdle,
		notify:  notify,
		logger:  logger.With().Str("module", "reaper").Logger(),
		cron:    cron.New(),
	}
}

// Start schedules the sweep. No-op when the timeout is zero.
func (r *Reaper) Start() error {
	if r.maxIdle <= 0 {
		return nil
	}
	if _, err := r.cron.AddFunc("@every 5m", r.sweep); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Reaper) sweep() {
	reaped := r.manager.ReapIdle(r.maxIdle)
	for _, owner := range reaped {
		r.logger.Info().Int64("owner_id", owner).Msg("idle session reaped")
		if r.notify != nil {
			r.notify(owner)
		}
	}
}
