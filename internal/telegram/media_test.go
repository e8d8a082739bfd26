package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMedia(t *testing.T) {
	bot := createTestBot(t)
	media := NewMedia(bot)

	assert.NotNil(t, media)
	assert.Equal(t, bot, media.bot)
	assert.NotNil(t, media.destDir)
}

func TestExtractFile(t *testing.T) {
	t.Run("document", func(t *testing.T) {
		msg := &tgbotapi.Message{
			Document: &tgbotapi.Document{
				FileID:   "doc-1",
				FileName: "notes.txt",
				FileSize: 128,
			},
		}
		in, ok := extractFile(msg)
		require.True(t, ok)
		assert.Equal(t, "document", in.Type)
		assert.Equal(t, "notes.txt", in.FileName)
		assert.Equal(t, "doc-1", in.FileID)
	})

	t.Run("largest photo size wins", func(t *testing.T) {
		msg := &tgbotapi.Message{
			Photo: []tgbotapi.PhotoSize{
				{FileID: "small", FileUniqueID: "u1", FileSize: 100},
				{FileID: "large", FileUniqueID: "u2", FileSize: 9000},
			},
		}
		in, ok := extractFile(msg)
		require.True(t, ok)
		assert.Equal(t, "photo", in.Type)
		assert.Equal(t, "large", in.FileID)
		assert.Equal(t, "u2.jpg", in.FileName)
	})

	t.Run("voice gets an extension", func(t *testing.T) {
		msg := &tgbotapi.Message{
			Voice: &tgbotapi.Voice{FileID: "v1", FileUniqueID: "uv"},
		}
		in, ok := extractFile(msg)
		require.True(t, ok)
		assert.Equal(t, "uv.ogg", in.FileName)
	})

	t.Run("no file", func(t *testing.T) {
		_, ok := extractFile(&tgbotapi.Message{Text: "just text"})
		assert.False(t, ok)
	})
}

func TestUploadFile_Validation(t *testing.T) {
	bot := createTestBot(t)
	media := NewMedia(bot)

	t.Run("missing file", func(t *testing.T) {
		err := media.UploadFile(42, "/nonexistent/path", "")
		assert.Error(t, err)
	})

	t.Run("directory rejected", func(t *testing.T) {
		err := media.UploadFile(42, t.TempDir(), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is a directory")
	})
}
