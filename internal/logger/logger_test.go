package logger

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"leviathan/internal/config"
)

func TestRecentLinesKeepsNewest(t *testing.T) {
	r := newRecentLines(3)
	for i := 1; i <= 5; i++ {
		_, err := fmt.Fprintf(r, "line %d\n", i)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, r.Lines())
}

func TestRecentLinesPartial(t *testing.T) {
	r := newRecentLines(10)
	_, _ = r.Write([]byte("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, r.Lines())
}

func TestRecentLinesDisabled(t *testing.T) {
	r := newRecentLines(0)
	n, err := r.Write([]byte("ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Empty(t, r.Lines())
}

func TestSetOutputAndRecent(t *testing.T) {
	var buf bytes.Buffer
	recent = newRecentLines(5)
	SetOutput(&buf, zapcore.DebugLevel)

	Infof("reminder %d delivered", 7)
	Warningf("giveaway %d channel missing", 9)
	Debugf("debug %s", "line")

	out := buf.String()
	assert.Contains(t, out, "reminder 7 delivered")
	assert.Contains(t, out, "WARN")

	lines := RecentLines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "reminder 7 delivered")
	assert.Contains(t, lines[2], "debug line")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("whatever"))
}

func TestSetupWritesFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.Logger.Directory = filepath.Join(t.TempDir(), "logs")
	cfg.Logger.Console = false

	require.NoError(t, Setup(cfg))
	Infof("hello from setup")
	Sync()

	entries, err := os.ReadDir(cfg.Logger.Directory)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "leviathan-")
	assert.NotEmpty(t, RecentLines())
}
