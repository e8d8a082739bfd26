package shell

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type editedMessage struct {
	ChatID    int64
	MessageID int
	Text      string
}

// fakeMessenger records publications and lets tests script errors.
type fakeMessenger struct {
	mu      sync.Mutex
	sends   []sentMessage
	edits   []editedMessage
	nextID  int
	sendErr error
	editErr error
}

func (f *fakeMessenger) SendCode(chatID int64, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sends = append(f.sends, sentMessage{ChatID: chatID, Text: text})
	return f.nextID, nil
}

func (f *fakeMessenger) EditCode(chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (f *fakeMessenger) setEditErr(err error) {
	f.mu.Lock()
	f.editErr = err
	f.mu.Unlock()
}

func (f *fakeMessenger) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sends...)
}

func (f *fakeMessenger) edited() []editedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]editedMessage(nil), f.edits...)
}

func createTestAggregator(t *testing.T) (*Aggregator, *fakeMessenger) {
	t.Helper()
	msgr := &fakeMessenger{}
	return NewAggregator(42, msgr, nil, zerolog.Nop()), msgr
}

func TestAggregatorFlush(t *testing.T) {
	t.Run("empty buffer is a no-op", func(t *testing.T) {
		agg, msgr := createTestAggregator(t)
		require.NoError(t, agg.Flush(false))
		assert.Empty(t, msgr.sent())
	})

	t.Run("first flush sends, later flushes edit", func(t *testing.T) {
		agg, msgr := createTestAggregator(t)
		agg.Append("line one\n")
		require.NoError(t, agg.Flush(false))

		agg.Append("line two\n")
		require.NoError(t, agg.Flush(false))

		sends := msgr.sent()
		require.Len(t, sends, 1)
		assert.Equal(t, "line one", sends[0].Text)

		edits := msgr.edited()
		require.Len(t, edits, 1)
		assert.Equal(t, 1, edits[0].MessageID)
		assert.Equal(t, "line one\nline two", edits[0].Text)
	})

	t.Run("unchanged text skips the edit", func(t *testing.T) {
		agg, msgr := createTestAggregator(t)
		agg.Append("stable\n")
		require.NoError(t, agg.Flush(false))
		require.NoError(t, agg.Flush(false))
		assert.Empty(t, msgr.edited())
	})

	t.Run("not-modified from the transport counts as success", func(t *testing.T) {
		agg, msgr := createTestAggregator(t)
		agg.Append("text")
		require.NoError(t, agg.Flush(false))

		msgr.setEditErr(ErrNotModified)
		agg.Append(" more")
		require.NoError(t, agg.Flush(false))
	})

	t.Run("gone message falls back to a fresh send", func(t *testing.T) {
		agg, msgr := createTestAggregator(t)
		agg.Append("text")
		require.NoError(t, agg.Flush(false))

		msgr.setEditErr(ErrMessageGone)
		agg.Append(" more")
		require.NoError(t, agg.Flush(false))

		sends := msgr.sent()
		require.Len(t, sends, 2)
		assert.Equal(t, "text more", sends[1].Text)
	})

	t.Run("other edit errors propagate", func(t *testing.T) {
		agg, msgr := createTestAggregator(t)
		agg.Append("text")
		require.NoError(t, agg.Flush(false))

		boom := errors.New("network down")
		msgr.setEditErr(boom)
		agg.Append(" more")
		assert.ErrorIs(t, agg.Flush(false), boom)
	})

	t.Run("final flush resets for the next command", func(t *testing.T) {
		agg, msgr := createTestAggregator(t)
		agg.Append("first command output")
		require.NoError(t, agg.Flush(true))
		assert.Zero(t, agg.BufferedBytes())

		agg.Append("second command output")
		require.NoError(t, agg.Flush(false))

		// a new message, not an edit of the previous command's
		sends := msgr.sent()
		require.Len(t, sends, 2)
		assert.Empty(t, msgr.edited())
	})

	t.Run("periodic flush keeps the buffer", func(t *testing.T) {
		agg, _ := createTestAggregator(t)
		agg.Append("keep me")
		require.NoError(t, agg.Flush(false))
		assert.Equal(t, len("keep me"), agg.BufferedBytes())
	})
}
