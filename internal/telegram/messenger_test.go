package telegram

import (
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/telsh/internal/shell"
)

// fakeSender records what the messenger sends and returns scripted
// results.
type fakeSender struct {
	sent    []tgbotapi.Chattable
	nextID  int
	sendErr error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func createTestMessenger(t *testing.T) (*Messenger, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	return &Messenger{
		api:    sender,
		logger: zerolog.Nop(),
	}, sender
}

func TestSendCode(t *testing.T) {
	m, sender := createTestMessenger(t)

	id, err := m.SendCode(42, "ls -la <dir> & echo")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Equal(t, "<code>ls -la &lt;dir&gt; &amp; echo</code>", msg.Text)
}

func TestEditCode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		m, sender := createTestMessenger(t)
		require.NoError(t, m.EditCode(42, 7, "output"))

		require.Len(t, sender.sent, 1)
		edit, ok := sender.sent[0].(tgbotapi.EditMessageTextConfig)
		require.True(t, ok)
		assert.Equal(t, 7, edit.MessageID)
	})

	t.Run("not modified", func(t *testing.T) {
		m, sender := createTestMessenger(t)
		sender.sendErr = errors.New("Bad Request: message is not modified")
		assert.ErrorIs(t, m.EditCode(42, 7, "output"), shell.ErrNotModified)
	})

	t.Run("message gone", func(t *testing.T) {
		m, sender := createTestMessenger(t)
		sender.sendErr = errors.New("Bad Request: message to edit not found")
		assert.ErrorIs(t, m.EditCode(42, 7, "output"), shell.ErrMessageGone)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		m, sender := createTestMessenger(t)
		sender.sendErr = errors.New("Too Many Requests: retry after 5")
		err := m.EditCode(42, 7, "output")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, shell.ErrNotModified)
		assert.NotErrorIs(t, err, shell.ErrMessageGone)
	})
}

func TestRenderCode(t *testing.T) {
	t.Run("escapes html", func(t *testing.T) {
		assert.Equal(t, "<code>&lt;b&gt;</code>", renderCode("<b>"))
	})

	t.Run("oversized output keeps the tail", func(t *testing.T) {
		long := strings.Repeat("a", maxCodeLength) + "TAIL"
		rendered := renderCode(long)
		assert.Contains(t, rendered, "TAIL</code>")
		assert.True(t, strings.HasPrefix(rendered, "<code>…"))
		assert.LessOrEqual(t, len([]rune(rendered)), maxCodeLength+20)
	})
}
