package telegram

import (
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Commands routes /slash commands to registered handlers
type Commands struct {
	bot      *Bot
	logger   zerolog.Logger
	handlers map[string]command
}

type command struct {
	fn          CommandFunc
	description string
}

// CommandFunc is a function that handles a command
type CommandFunc func(CommandContext) error

// CommandContext contains command metadata
type CommandContext struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Command   string
	Args      []string
	RawArgs   string
}

// NewCommands creates a new command router
func NewCommands(bot *Bot) *Commands {
	return &Commands{
		bot:      bot,
		logger:   bot.logger.With().Str("module", "commands").Logger(),
		handlers: make(map[string]command),
	}
}

// HandleCommand processes incoming commands
func (c *Commands) HandleCommand(update tgbotapi.Update) error {
	if update.Message == nil || !update.Message.IsCommand() {
		return nil
	}

	msg := update.Message
	name := msg.Command()
	args := strings.Fields(msg.CommandArguments())

	ctx := CommandContext{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		UserID:    msg.From.ID,
		Username:  msg.From.UserName,
		Command:   name,
		Args:      args,
		RawArgs:   msg.CommandArguments(),
	}

	c.logger.Debug().
		Int64("chat_id", ctx.ChatID).
		Str("command", name).
		Strs("args", args).
		Msg("Command received")

	cmd, exists := c.handlers[name]
	if !exists {
		return c.sendUnknownCommand(ctx)
	}

	return cmd.fn(ctx)
}

// Register registers a command handler with its menu description
func (c *Commands) Register(name, description string, fn CommandFunc) {
	c.handlers[name] = command{fn: fn, description: description}
	c.logger.Info().Str("command", name).Msg("Command registered")
}

// PublishMenu pushes the registered commands into Telegram's command menu
func (c *Commands) PublishMenu() error {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]tgbotapi.BotCommand, 0, len(names))
	for _, name := range names {
		list = append(list, tgbotapi.BotCommand{
			Command:     name,
			Description: c.handlers[name].description,
		})
	}

	cfg := tgbotapi.NewSetMyCommands(list...)
	if _, err := c.bot.api.Request(cfg); err != nil {
		return fmt.Errorf("failed to set commands: %w", err)
	}

	c.logger.Info().Int("count", len(list)).Msg("Bot commands updated")
	return nil
}

// sendUnknownCommand sends an unknown command response
func (c *Commands) sendUnknownCommand(ctx CommandContext) error {
	text := fmt.Sprintf("Unknown command: /%s", ctx.Command)
	return c.bot.SendMessageWithReply(ctx.ChatID, text, ctx.MessageID)
}

// SendResponse sends a response to a command
func (c *Commands) SendResponse(ctx CommandContext, text string) error {
	return c.bot.SendMessageWithReply(ctx.ChatID, text, ctx.MessageID)
}

// GetRegisteredCommands returns all registered command names
func (c *Commands) GetRegisteredCommands() []string {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	return names
}
