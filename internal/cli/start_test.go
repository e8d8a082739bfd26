package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/telsh/internal/config"
)

func TestStartCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"start", "--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		assert.Contains(t, output.String(), "Start the telsh daemon service")
	})
}

func TestGetPIDFilePath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = "/var/lib/telsh"

	assert.Equal(t, "/var/lib/telsh/telsh.pid", getPIDFilePath(cfg))
}

func TestReadPID(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := filepath.Join(tmpDir, "telsh.pid")

	t.Run("missing file", func(t *testing.T) {
		_, ok := readPID(pidFile)
		assert.False(t, ok)
	})

	t.Run("valid pid", func(t *testing.T) {
		require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644))

		pid, ok := readPID(pidFile)
		require.True(t, ok)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("garbage contents", func(t *testing.T) {
		require.NoError(t, os.WriteFile(pidFile, []byte("not a pid"), 0o644))

		_, ok := readPID(pidFile)
		assert.False(t, ok)
	})
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
	assert.False(t, processAlive(0))
	assert.False(t, processAlive(999999999))
}
