package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgress(t *testing.T) {
	t.Run("stats line", func(t *testing.T) {
		p, ok := ParseProgress("Transferred:   	 1.5 MiB / 10 MiB, 15%, 500 KiB/s, ETA 17s")
		require.True(t, ok)
		assert.Equal(t, "1.5 MiB", p.Transferred)
		assert.Equal(t, "10 MiB", p.Total)
		assert.Equal(t, 15, p.Percent)
		assert.Equal(t, "500 KiB/s", p.Speed)
		assert.Equal(t, "17s", p.ETA)
	})

	t.Run("complete", func(t *testing.T) {
		p, ok := ParseProgress("Transferred:   	 10 MiB / 10 MiB, 100%, 2.1 MiB/s, ETA 0s")
		require.True(t, ok)
		assert.Equal(t, 100, p.Percent)
	})

	t.Run("unknown percentage is skipped", func(t *testing.T) {
		_, ok := ParseProgress("Transferred:   	 1.5 MiB / 10 MiB, -, 500 KiB/s, ETA -")
		assert.False(t, ok)
	})

	t.Run("file count line is skipped", func(t *testing.T) {
		_, ok := ParseProgress("Transferred:            3 / 10, 30%")
		assert.False(t, ok)
	})

	t.Run("unrelated output", func(t *testing.T) {
		_, ok := ParseProgress("Checks:                 0 / 0, -")
		assert.False(t, ok)
	})
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░", Progress{Percent: 0}.bar())
	assert.Equal(t, "█░░░░░░░░░", Progress{Percent: 15}.bar())
	assert.Equal(t, "█████░░░░░", Progress{Percent: 50}.bar())
	assert.Equal(t, "██████████", Progress{Percent: 100}.bar())
}

func TestProgressRender(t *testing.T) {
	p := Progress{Transferred: "5 MiB", Total: "10 MiB", Percent: 50, Speed: "1 MiB/s", ETA: "5s"}
	rendered := p.Render("abc12345")
	assert.Contains(t, rendered, "transfer abc12345")
	assert.Contains(t, rendered, "[█████░░░░░] 50%")
	assert.Contains(t, rendered, "5 MiB / 10 MiB, 1 MiB/s, ETA 5s")
}
