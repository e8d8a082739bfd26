package telegram

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/harun/telsh/internal/metrics"
	"github.com/harun/telsh/internal/shell"
)

// maxCodeLength keeps rendered output under Telegram's 4096-char message
// cap, with headroom for the markup.
const maxCodeLength = 4000

// senderAPI is the slice of the bot API the messenger needs. Narrowed for
// tests.
type senderAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Messenger publishes shell output as monospace HTML messages and maps
// the transport's edit failures onto the sentinel errors the output
// aggregator understands.
type Messenger struct {
	api     senderAPI
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewMessenger creates a messenger on top of a running bot.
func NewMessenger(bot *Bot, m *metrics.Metrics) *Messenger {
	return &Messenger{
		api:     bot.api,
		logger:  bot.logger.With().Str("module", "messenger").Logger(),
		metrics: m,
	}
}

// SendCode posts text as a monospace message and returns its message ID.
func (m *Messenger) SendCode(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, renderCode(text))
	msg.ParseMode = tgbotapi.ModeHTML

	sent, err := m.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}

	if m.metrics != nil {
		m.metrics.MessagesSentTotal.Inc()
	}
	return sent.MessageID, nil
}

// EditCode replaces the text of a monospace message. Returns
// shell.ErrNotModified when the text is already there and
// shell.ErrMessageGone when the message can no longer be edited, so the
// caller can tell a harmless outcome from a real failure.
func (m *Messenger) EditCode(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, renderCode(text))
	edit.ParseMode = tgbotapi.ModeHTML

	_, err := m.api.Send(edit)
	if err != nil {
		return classifyEditError(err)
	}

	if m.metrics != nil {
		m.metrics.MessagesSentTotal.Inc()
	}
	return nil
}

// SendText posts a plain message, used for prompts and status replies
// that need no code formatting.
func (m *Messenger) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := m.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if m.metrics != nil {
		m.metrics.MessagesSentTotal.Inc()
	}
	return nil
}

// classifyEditError maps the Bot API's stringly-typed edit failures onto
// sentinels.
func classifyEditError(err error) error {
	text := err.Error()
	switch {
	case strings.Contains(text, "message is not modified"):
		return shell.ErrNotModified
	case strings.Contains(text, "message to edit not found"),
		strings.Contains(text, "message can't be edited"),
		strings.Contains(text, "MESSAGE_ID_INVALID"):
		return shell.ErrMessageGone
	default:
		return fmt.Errorf("failed to update message: %w", err)
	}
}

// renderCode escapes text and wraps it in a code block. Oversized output
// keeps its tail: for a running command the newest lines are the ones
// that matter.
func renderCode(text string) string {
	runes := []rune(text)
	if len(runes) > maxCodeLength {
		text = "…" + string(runes[len(runes)-maxCodeLength:])
	}
	return "<code>" + html.EscapeString(text) + "</code>"
}
