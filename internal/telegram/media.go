package telegram

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// MaxMediaSize caps downloads at Telegram's bot API limit.
const MaxMediaSize = 50 * 1024 * 1024

// Media handles file exchange with the host: documents sent to the bot
// land on disk, and host files go out as document uploads.
type Media struct {
	bot     *Bot
	logger  zerolog.Logger
	destDir DestDirFunc

	// Callback invoked after an incoming file was saved
	onFileSaved func(chatID, userID int64, path string) error
}

// DestDirFunc resolves the target directory for a user's incoming files.
type DestDirFunc func(userID int64) string

// IncomingFile describes a file attached to a message.
type IncomingFile struct {
	FileID   string
	FileName string
	FileSize int
	Type     string // photo, video, audio, document, voice
}

// NewMedia creates a new media handler
func NewMedia(bot *Bot) *Media {
	return &Media{
		bot:     bot,
		logger:  bot.logger.With().Str("module", "media").Logger(),
		destDir: defaultDestDir,
	}
}

// SetOnFileSaved sets the callback run after an incoming file is written.
// The daemon uses it to confirm the save in chat.
func (m *Media) SetOnFileSaved(callback func(chatID, userID int64, path string) error) {
	m.onFileSaved = callback
}

// defaultDestDir drops incoming files in the user's home directory. The
// daemon overrides this to point at the session's working directory.
var defaultDestDir DestDirFunc = func(int64) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// SetDestDir overrides where incoming files land.
func (m *Media) SetDestDir(fn DestDirFunc) {
	if fn != nil {
		m.destDir = fn
	}
}

// HandleMedia saves an incoming file into the user's working directory.
func (m *Media) HandleMedia(update tgbotapi.Update) error {
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	in, ok := extractFile(msg)
	if !ok {
		return nil
	}

	m.logger.Debug().
		Str("file_id", in.FileID).
		Str("type", in.Type).
		Int64("chat_id", msg.Chat.ID).
		Msg("File received")

	if in.FileName == "" {
		in.FileName = in.FileID
	}
	dir := m.destDir(msg.From.ID)
	dest := filepath.Join(dir, filepath.Base(in.FileName))

	if err := m.DownloadFile(in.FileID, dest); err != nil {
		return err
	}

	if m.onFileSaved != nil {
		return m.onFileSaved(msg.Chat.ID, msg.From.ID, dest)
	}
	return nil
}

// extractFile locates the file attached to a message. For photos the
// largest size wins.
func extractFile(msg *tgbotapi.Message) (IncomingFile, bool) {
	switch {
	case msg.Document != nil:
		return IncomingFile{
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			FileSize: msg.Document.FileSize,
			Type:     "document",
		}, true
	case len(msg.Photo) > 0:
		photo := msg.Photo[len(msg.Photo)-1]
		return IncomingFile{
			FileID:   photo.FileID,
			FileName: photo.FileUniqueID + ".jpg",
			FileSize: photo.FileSize,
			Type:     "photo",
		}, true
	case msg.Video != nil:
		return IncomingFile{
			FileID:   msg.Video.FileID,
			FileName: msg.Video.FileName,
			FileSize: msg.Video.FileSize,
			Type:     "video",
		}, true
	case msg.Audio != nil:
		return IncomingFile{
			FileID:   msg.Audio.FileID,
			FileName: msg.Audio.FileName,
			FileSize: msg.Audio.FileSize,
			Type:     "audio",
		}, true
	case msg.Voice != nil:
		return IncomingFile{
			FileID:   msg.Voice.FileID,
			FileName: msg.Voice.FileUniqueID + ".ogg",
			FileSize: msg.Voice.FileSize,
			Type:     "voice",
		}, true
	}
	return IncomingFile{}, false
}

// DownloadFile downloads a file from Telegram onto the host.
func (m *Media) DownloadFile(fileID string, destPath string) error {
	file, err := m.bot.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	if file.FileSize > MaxMediaSize {
		return fmt.Errorf("file size %d exceeds maximum %d", file.FileSize, MaxMediaSize)
	}

	url := file.Link(m.bot.api.Token)

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	m.logger.Info().
		Str("file_id", fileID).
		Str("path", destPath).
		Int64("size", written).
		Msg("File downloaded")

	return nil
}

// UploadFile sends a host file into the chat as a document.
func (m *Media) UploadFile(chatID int64, path string, caption string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxMediaSize {
		return fmt.Errorf("file size %d exceeds maximum %d", info.Size(), MaxMediaSize)
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption

	if _, err := m.bot.api.Send(doc); err != nil {
		return fmt.Errorf("failed to upload document: %w", err)
	}

	m.logger.Info().
		Int64("chat_id", chatID).
		Str("path", path).
		Msg("Document uploaded")

	return nil
}

// UploadPhoto sends a host image into the chat rendered as a photo.
func (m *Media) UploadPhoto(chatID int64, path string, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = caption

	if _, err := m.bot.api.Send(photo); err != nil {
		return fmt.Errorf("failed to upload photo: %w", err)
	}

	m.logger.Info().
		Int64("chat_id", chatID).
		Str("path", path).
		Msg("Photo uploaded")

	return nil
}
