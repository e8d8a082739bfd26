package daemon

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/telsh/internal/config"
	"github.com/harun/telsh/internal/logger"
	"github.com/harun/telsh/internal/metrics"
	"github.com/harun/telsh/internal/shell"
	"github.com/harun/telsh/internal/telegram"
	"github.com/harun/telsh/internal/transfer"
)

// fakeBotClient answers every Bot API call with a canned success and
// records the text of each outgoing message.
type fakeBotClient struct {
	mu    sync.Mutex
	texts []string
}

func (c *fakeBotClient) Do(req *http.Request) (*http.Response, error) {
	if err := req.ParseForm(); err == nil {
		if text := req.PostFormValue("text"); text != "" {
			c.mu.Lock()
			c.texts = append(c.texts, text)
			c.mu.Unlock()
		}
	}
	body := `{"ok":true,"result":{"message_id":1,"chat":{"id":1},"date":1}}`
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}

func (c *fakeBotClient) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

// createWiredDaemon builds a daemon whose Telegram transport talks to a
// stubbed HTTP client, with a real /bin/sh behind the session manager.
func createWiredDaemon(t *testing.T) (*Daemon, *fakeBotClient) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Telegram.Allowlist = []int64{12345}
	cfg.Shell.Command = "/bin/sh"

	log, err := logger.New(logger.Config{Level: "info", Console: false})
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	client := &fakeBotClient{}
	api := &tgbotapi.BotAPI{
		Token:  "123456789:test",
		Self:   tgbotapi.User{ID: 1, UserName: "testbot"},
		Client: client,
		Buffer: 100,
	}
	api.SetAPIEndpoint(tgbotapi.APIEndpoint)

	d := &Daemon{logger: log, config: cfg}
	d.metrics = metrics.New()

	bot, err := telegram.NewWithAPI(api, d.Authorized, log, d.metrics)
	require.NoError(t, err)
	d.bot = bot
	d.messenger = telegram.NewMessenger(bot, d.metrics)

	d.shellMgr = shell.NewManager(shell.ManagerConfig{
		Messenger:     d.messenger,
		ShellCommand:  cfg.Shell.Command,
		FlushInterval: time.Hour,
		Metrics:       d.metrics,
		Logger:        log.GetZerolog(),
	})
	t.Cleanup(d.shellMgr.Shutdown)

	d.transfers = transfer.NewRunner(transfer.Config{
		Messenger: d.messenger,
		Logger:    log.GetZerolog(),
	})
	t.Cleanup(d.transfers.Shutdown)

	d.registerHandlers()
	return d, client
}

func commandContext(command, rawArgs string) telegram.CommandContext {
	ctx := telegram.CommandContext{
		ChatID:    67890,
		MessageID: 3,
		UserID:    12345,
		Username:  "testuser",
		Command:   command,
		RawArgs:   rawArgs,
	}
	if rawArgs != "" {
		ctx.Args = strings.Fields(rawArgs)
	}
	return ctx
}

func TestCmdType(t *testing.T) {
	d, client := createWiredDaemon(t)

	t.Run("no session", func(t *testing.T) {
		require.NoError(t, d.cmdType(commandContext("type", "y")))

		texts := client.sent()
		require.NotEmpty(t, texts)
		assert.Contains(t, texts[len(texts)-1], "no active session")
	})

	t.Run("confirms the typed text", func(t *testing.T) {
		require.NoError(t, d.shellMgr.Start(12345, 67890))

		require.NoError(t, d.cmdType(commandContext("type", "y")))

		texts := client.sent()
		require.NotEmpty(t, texts)
		assert.Equal(t, "typed: y", texts[len(texts)-1])
	})

	t.Run("empty text is usage", func(t *testing.T) {
		require.NoError(t, d.cmdType(commandContext("type", "")))

		texts := client.sent()
		require.NotEmpty(t, texts)
		assert.Contains(t, texts[len(texts)-1], "usage")
	})
}

func TestCmdTransferCancelUnknown(t *testing.T) {
	d, client := createWiredDaemon(t)

	require.NoError(t, d.cmdTransferCancel(commandContext("rccancel", "nope1234")))

	texts := client.sent()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "no transfer nope1234")
}

func TestOnShellCommandNoSession(t *testing.T) {
	d, client := createWiredDaemon(t)

	err := d.onShellCommand(telegram.MessageContext{
		ChatID: 67890, MessageID: 3, UserID: 12345, Text: "ls -la",
	})
	require.NoError(t, err)

	texts := client.sent()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "no active session")
}
