package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatcher(t *testing.T) {
	t.Run("requires path", func(t *testing.T) {
		_, err := NewWatcher("", nil)
		assert.Error(t, err)
	})

	t.Run("creates", func(t *testing.T) {
		w, err := NewWatcher(filepath.Join(t.TempDir(), "telsh.json"), nil)
		require.NoError(t, err)
		w.Stop()
	})
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telsh.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"telegram": {"allowlist": [1]}}`), 0644))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// Give the watcher a moment to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"telegram": {"allowlist": [1, 2]}}`), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, []int64{1, 2}, cfg.Telegram.Allowlist)
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback not invoked")
	}
}

func TestWatcherRejectsInvalidChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telsh.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"telegram": {"allowlist": [1]}}`), 0644))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	// Schema-invalid content must not trigger the callback
	require.NoError(t, os.WriteFile(path, []byte(`{"telegram": {"allowlist": ["x"]}}`), 0644))

	select {
	case <-reloaded:
		t.Fatal("invalid config should not reload")
	case <-time.After(700 * time.Millisecond):
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "telsh.json"), nil)
	require.NoError(t, err)
	w.Stop()
	w.Stop()
}
