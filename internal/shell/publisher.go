package shell

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// runPublisher periodically publishes the session's buffered output so
// long-running commands show progress before they finish. Edits are
// additionally rate limited to one per second per chat regardless of how
// aggressive the configured interval is.
func (m *Manager) runPublisher(ctx context.Context, sess *Session) {
	defer sess.tasks.Done()

	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !limiter.Allow() {
				continue
			}
			if err := sess.aggregator.Flush(false); err != nil {
				m.logger.Warn().Err(err).
					Int64("owner_id", sess.OwnerID).
					Msg("periodic flush failed")
			}
		}
	}
}
