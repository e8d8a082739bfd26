package shell

import (
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/harun/telsh/internal/metrics"
)

// Outcomes a Messenger implementation must distinguish. Both are normal
// conditions for the aggregator, not failures.
var (
	// ErrNotModified means an edit carried the same text the message
	// already holds. The publication succeeded as far as we care.
	ErrNotModified = errors.New("message not modified")

	// ErrMessageGone means the target message no longer exists (deleted,
	// too old to edit). The aggregator falls back to a fresh send.
	ErrMessageGone = errors.New("message gone")
)

// Messenger publishes command output into the chat conversation as
// code-formatted messages. Implementations map their transport's error
// responses onto ErrNotModified and ErrMessageGone.
type Messenger interface {
	// SendCode posts a new message and returns its ID.
	SendCode(chatID int64, text string) (int, error)
	// EditCode replaces the text of an existing message.
	EditCode(chatID int64, messageID int, text string) error
}

// Aggregator collects output fragments from a session's streams and
// publishes them into a single chat message, editing it in place as more
// output arrives. Buffer and publication state live under one lock so a
// periodic flush and a final flush can never interleave.
type Aggregator struct {
	chatID    int64
	messenger Messenger
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu            sync.Mutex
	fragments     []string
	size          int
	lastMessageID int
	lastText      string
}

// NewAggregator creates an aggregator publishing to one chat. metrics may
// be nil.
func NewAggregator(chatID int64, messenger Messenger, m *metrics.Metrics, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		chatID:    chatID,
		messenger: messenger,
		metrics:   m,
		logger:    logger.With().Int64("chat_id", chatID).Logger(),
	}
}

// Append adds one output fragment to the buffer. Never blocks on the
// network.
func (a *Aggregator) Append(fragment string) {
	if fragment == "" {
		return
	}
	a.mu.Lock()
	a.fragments = append(a.fragments, fragment)
	a.size += len(fragment)
	if a.metrics != nil {
		a.metrics.BufferedBytes.Set(float64(a.size))
	}
	a.mu.Unlock()
}

// BufferedBytes returns the current buffer size.
func (a *Aggregator) BufferedBytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// Flush publishes the accumulated output. A periodic flush (final=false)
// keeps the buffer so later flushes republish the growing text into the
// same message. A final flush clears both the buffer and the publication
// state, so the next command starts a fresh message.
//
// An empty buffer, or text identical to what was already published, is a
// no-op: no send, no edit.
func (a *Aggregator) Flush(final bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(strings.Join(a.fragments, ""))
	if final {
		defer a.reset()
	}

	if text == "" || text == a.lastText {
		return nil
	}

	mode := "periodic"
	if final {
		mode = "final"
	}

	if a.lastMessageID != 0 {
		err := a.messenger.EditCode(a.chatID, a.lastMessageID, text)
		switch {
		case err == nil, errors.Is(err, ErrNotModified):
			a.lastText = text
			if a.metrics != nil {
				a.metrics.PublishesTotal.WithLabelValues(mode).Inc()
			}
			return nil
		case errors.Is(err, ErrMessageGone):
			a.logger.Debug().Int("message_id", a.lastMessageID).
				Msg("output message gone, sending fresh")
			a.lastMessageID = 0
		default:
			if a.metrics != nil {
				a.metrics.PublishErrorsTotal.Inc()
			}
			return err
		}
	}

	id, err := a.messenger.SendCode(a.chatID, text)
	if err != nil {
		if a.metrics != nil {
			a.metrics.PublishErrorsTotal.Inc()
		}
		return err
	}
	a.lastMessageID = id
	a.lastText = text
	if a.metrics != nil {
		a.metrics.PublishesTotal.WithLabelValues(mode).Inc()
	}
	return nil
}

// reset must be called with the lock held.
func (a *Aggregator) reset() {
	a.fragments = nil
	a.size = 0
	a.lastMessageID = 0
	a.lastText = ""
	if a.metrics != nil {
		a.metrics.BufferedBytes.Set(0)
	}
}
