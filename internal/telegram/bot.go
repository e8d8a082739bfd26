package telegram

import (
	"fmt"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/harun/telsh/internal/logger"
	"github.com/harun/telsh/internal/metrics"
)

// Bot represents a Telegram bot instance
type Bot struct {
	api     *tgbotapi.BotAPI
	logger  zerolog.Logger
	metrics *metrics.Metrics

	// Authorizer decides which user IDs may talk to the bot. Everyone
	// else is dropped before any handler runs.
	authorizer func(userID int64) bool

	// Handlers
	messageHandler MessageHandler
	commandHandler CommandHandler
	mediaHandler   MediaHandler

	// State, read from the update-processing goroutine
	running atomic.Bool
	updates tgbotapi.UpdatesChannel
}

// MessageHandler handles incoming plain-text messages
type MessageHandler interface {
	HandleMessage(update tgbotapi.Update) error
}

// CommandHandler handles bot commands
type CommandHandler interface {
	HandleCommand(update tgbotapi.Update) error
}

// MediaHandler handles messages carrying files
type MediaHandler interface {
	HandleMedia(update tgbotapi.Update) error
}

// New creates a new Telegram bot instance. authorizer must not be nil:
// this bot hands out shell access, an open bot is never acceptable.
func New(botToken string, authorizer func(int64) bool, log *logger.Logger, m *metrics.Metrics) (*Bot, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}

	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot, err := NewWithAPI(api, authorizer, log, m)
	if err != nil {
		return nil, err
	}

	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot, nil
}

// NewWithAPI wraps an already-constructed API client. Tests use it to
// supply a client with a stubbed transport.
func NewWithAPI(api *tgbotapi.BotAPI, authorizer func(int64) bool, log *logger.Logger, m *metrics.Metrics) (*Bot, error) {
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}

	return &Bot{
		api:        api,
		logger:     log.GetZerolog().With().Str("component", "telegram").Logger(),
		metrics:    m,
		authorizer: authorizer,
	}, nil
}

// Start starts the bot and begins processing updates
func (b *Bot) Start() error {
	if b.running.Load() {
		return fmt.Errorf("bot is already running")
	}

	b.logger.Info().Msg("Starting Telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.updates = updates
	b.running.Store(true)

	go b.processUpdates()

	b.logger.Info().Msg("Telegram bot started")

	return nil
}

// Stop stops the bot
func (b *Bot) Stop() error {
	if !b.running.Load() {
		return fmt.Errorf("bot is not running")
	}

	b.logger.Info().Msg("Stopping Telegram bot")

	b.running.Store(false)
	b.api.StopReceivingUpdates()

	b.logger.Info().Msg("Telegram bot stopped")

	return nil
}

// processUpdates processes incoming updates
func (b *Bot) processUpdates() {
	for update := range b.updates {
		if !b.running.Load() {
			break
		}

		if err := b.handleUpdate(update); err != nil {
			b.logger.Error().
				Err(err).
				Int("update_id", update.UpdateID).
				Msg("Failed to handle update")
		}
	}
}

// handleUpdate authorizes an update and routes it to the appropriate
// handler
func (b *Bot) handleUpdate(update tgbotapi.Update) error {
	if update.Message == nil {
		return nil
	}

	msg := update.Message

	if msg.From == nil || !b.authorizer(msg.From.ID) {
		if b.metrics != nil {
			b.metrics.UnauthorizedTotal.Inc()
		}
		b.logger.Warn().
			Int64("chat_id", msg.Chat.ID).
			Interface("from", msg.From).
			Msg("Unauthorized message dropped")
		return nil
	}

	if b.metrics != nil {
		b.metrics.MessagesReceivedTotal.Inc()
	}

	if msg.IsCommand() && b.commandHandler != nil {
		return b.commandHandler.HandleCommand(update)
	}

	if b.hasMedia(msg) && b.mediaHandler != nil {
		return b.mediaHandler.HandleMedia(update)
	}

	if b.messageHandler != nil {
		return b.messageHandler.HandleMessage(update)
	}

	return nil
}

// hasMedia checks if a message contains a file
func (b *Bot) hasMedia(msg *tgbotapi.Message) bool {
	return msg.Photo != nil ||
		msg.Video != nil ||
		msg.Audio != nil ||
		msg.Document != nil ||
		msg.Voice != nil
}

// SendMessage sends a plain text message
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)

	_, err := b.api.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	if b.metrics != nil {
		b.metrics.MessagesSentTotal.Inc()
	}
	b.logger.Debug().
		Int64("chat_id", chatID).
		Msg("Message sent")

	return nil
}

// SendMessageWithReply sends a text message as a reply
func (b *Bot) SendMessageWithReply(chatID int64, text string, replyToMessageID int) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyToMessageID

	_, err := b.api.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	if b.metrics != nil {
		b.metrics.MessagesSentTotal.Inc()
	}

	return nil
}

// SetMessageHandler sets the message handler
func (b *Bot) SetMessageHandler(handler MessageHandler) {
	b.messageHandler = handler
}

// SetCommandHandler sets the command handler
func (b *Bot) SetCommandHandler(handler CommandHandler) {
	b.commandHandler = handler
}

// SetMediaHandler sets the media handler
func (b *Bot) SetMediaHandler(handler MediaHandler) {
	b.mediaHandler = handler
}

// GetAPI returns the underlying bot API
func (b *Bot) GetAPI() *tgbotapi.BotAPI {
	return b.api
}

// IsRunning returns whether the bot is running
func (b *Bot) IsRunning() bool {
	return b.running.Load()
}

// WaitForReady waits for the bot to be ready
func (b *Bot) WaitForReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if b.running.Load() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("bot did not become ready within timeout")
}
