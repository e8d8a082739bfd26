package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))
		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "bash", cfg.Shell.Command)
		assert.NotEmpty(t, cfg.DataDir)
		assert.NotEmpty(t, cfg.Logging.File)
	})

	t.Run("reads file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "telsh.json")
		content := `{
  "telegram": {"bot_token": "123456789:AAHdqTcvbX", "allowlist": [42]},
  "shell": {"command": "zsh", "flush_interval": 5},
  "data_dir": "` + dir + `"
}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)
		assert.Equal(t, "zsh", cfg.Shell.Command)
		assert.Equal(t, 5, cfg.Shell.FlushInterval)
		assert.Equal(t, []int64{42}, cfg.Telegram.Allowlist)
		// untouched fields keep defaults
		assert.Equal(t, "rclone", cfg.Transfer.Binary)
		assert.Equal(t, filepath.Join(dir, "telsh.log"), cfg.Logging.File)
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "telsh.json")
		require.NoError(t, os.WriteFile(path, []byte("{nope"), 0644))

		_, err := NewLoader(path).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telsh.json")

	cfg := validConfig()
	cfg.DataDir = dir
	cfg.Shell.Command = "fish"

	loader := NewLoader(path)
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "fish", loaded.Shell.Command)
	assert.Equal(t, cfg.Telegram.Allowlist, loaded.Telegram.Allowlist)
}

func TestValidateJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		data := []byte(`{"telegram": {"allowlist": [42]}, "shell": {"flush_interval": 10}}`)
		assert.NoError(t, ValidateJSON(data))
	})

	t.Run("string allowlist entry", func(t *testing.T) {
		data := []byte(`{"telegram": {"allowlist": ["42"]}}`)
		assert.Error(t, ValidateJSON(data))
	})

	t.Run("zero flush interval", func(t *testing.T) {
		data := []byte(`{"shell": {"flush_interval": 0}}`)
		assert.Error(t, ValidateJSON(data))
	})

	t.Run("bad log level", func(t *testing.T) {
		data := []byte(`{"logging": {"level": "loud"}}`)
		assert.Error(t, ValidateJSON(data))
	})
}

func TestValidateTelegramToken(t *testing.T) {
	assert.NoError(t, ValidateTelegramToken("123456789:AAHdqTcvbXyz_abc-DEF"))
	assert.Error(t, ValidateTelegramToken(""))
	assert.Error(t, ValidateTelegramToken("no-colon-here"))
	assert.Error(t, ValidateTelegramToken("abc:def"))
}
