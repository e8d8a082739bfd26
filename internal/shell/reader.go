package shell

import (
	"context"
	"io"
	"strings"
	"unicode/utf8"
)

// readStream drains one of the shell's output pipes into the session's
// aggregator. Each stream gets its own scanner so a marker split across
// reads on stdout can never be confused by stderr traffic. The goroutine
// exits when the pipe closes, which End arranges by terminating the
// process.
func (m *Manager) readStream(ctx context.Context, sess *Session, r io.Reader, stream string) {
	defer sess.tasks.Done()

	logger := m.logger.With().
		Int64("owner_id", sess.OwnerID).
		Str("stream", stream).
		Logger()

	var scanner markerScanner
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := strings.ToValidUTF8(string(buf[:n]), string(utf8.RuneError))
			res := scanner.Feed(chunk)
			if res.Cwd != "" {
				sess.setCwd(res.Cwd)
			}
			if res.Text != "" {
				sess.aggregator.Append(res.Text)
			}
			if res.Done {
				m.finishCommand(sess)
			}
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				logger.Warn().Err(err).Msg("stream read failed")
			}
			if rest := scanner.Flush(); rest != "" {
				sess.aggregator.Append(rest)
			}
			return
		}
	}
}

// finishCommand runs when the completion marker arrives: publish whatever
// is buffered, release the command lock, and show a fresh prompt.
func (m *Manager) finishCommand(sess *Session) {
	commandID := sess.CommandID()
	if err := sess.aggregator.Flush(true); err != nil {
		m.logger.Error().Err(err).
			Int64("owner_id", sess.OwnerID).
			Str("command_id", commandID).
			Msg("final flush failed")
	}

	elapsed, held := sess.Release()
	if held && m.metrics != nil {
		m.metrics.CommandDuration.Observe(elapsed.Seconds())
	}
	m.logger.Debug().
		Int64("owner_id", sess.OwnerID).
		Str("command_id", commandID).
		Dur("elapsed", elapsed).
		Msg("command finished")

	m.sendPrompt(sess)
}
