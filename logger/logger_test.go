package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}

	return entries
}

func TestNew(t *testing.T) {
	t.Run("writes JSON with service and fields", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Options{Service: "termninja", Level: zerolog.DebugLevel, Output: &buf})
		require.NoError(t, err)

		l.Info("connection", Field{Key: "addr", Value: "127.0.0.1:5000"})

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "termninja", entries[0]["service"])
		assert.Equal(t, "connection", entries[0]["message"])
		assert.Equal(t, "127.0.0.1:5000", entries[0]["addr"])
		assert.Equal(t, "info", entries[0]["level"])
	})

	t.Run("filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Options{Service: "termninja", Level: zerolog.WarnLevel, Output: &buf})
		require.NoError(t, err)

		l.Debug("hidden")
		l.Info("hidden")
		l.Warn("shown")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "shown", entries[0]["message"])
	})

	t.Run("renders error values as strings", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Options{Service: "termninja", Level: zerolog.InfoLevel, Output: &buf})
		require.NoError(t, err)

		l.Error("failed", Err(errors.New("boom")))

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "boom", entries[0]["error"])
	})

	t.Run("duplicates entries to rotated file", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "logs")
		var buf bytes.Buffer
		l, err := New(Options{Service: "svc", Level: zerolog.InfoLevel, Output: &buf, Dir: dir})
		require.NoError(t, err)

		l.Info("to both")
		require.NoError(t, l.Close())

		name := filepath.Join(dir, "svc_"+time.Now().Format(dateLayout)+".log")
		data, err := os.ReadFile(name)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to both")
		assert.Contains(t, buf.String(), "to both")
	})
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Service: "termninja", Level: zerolog.InfoLevel, Output: &buf})
	require.NoError(t, err)

	child := l.With(Field{Key: "session", Value: 7})
	child.Info("child")
	l.Info("parent")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.EqualValues(t, 7, entries[0]["session"])
	_, ok := entries[1]["session"]
	assert.False(t, ok, "parent must not inherit child fields")
	assert.NoError(t, child.Close())
}

func TestParseLevel(t *testing.T) {
	t.Run("known names", func(t *testing.T) {
		assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
		assert.Equal(t, zerolog.WarnLevel, ParseLevel("WARN"))
		assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" error "))
	})

	t.Run("unknown and empty fall back to info", func(t *testing.T) {
		assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
		assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	})
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	require.NotNil(t, l)
	l.Info("discarded", Field{Key: "k", Value: "v"})
	assert.NoError(t, l.With(Field{Key: "a", Value: 1}).Close())
}

func TestDailyFileWriter(t *testing.T) {
	t.Run("rotates when the date changes", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewDailyFileWriter("svc", dir)
		require.NoError(t, err)
		defer w.Close()

		first := w.currentLogFile()
		_, err = w.Write([]byte("day one\n"))
		require.NoError(t, err)

		w.mu.Lock()
		w.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
		w.mu.Unlock()

		_, err = w.Write([]byte("day two\n"))
		require.NoError(t, err)

		second := w.currentLogFile()
		assert.NotEqual(t, first, second)

		data, err := os.ReadFile(second)
		require.NoError(t, err)
		assert.Equal(t, "day two\n", string(data))
	})

	t.Run("close is idempotent and blocks writes", func(t *testing.T) {
		w, err := NewDailyFileWriter("svc", t.TempDir())
		require.NoError(t, err)

		require.NoError(t, w.Close())
		require.NoError(t, w.Close())
		assert.Empty(t, w.currentLogFile())

		_, err = w.Write([]byte("late"))
		assert.ErrorIs(t, err, errWriterClosed)
	})

	t.Run("fails when the directory is missing", func(t *testing.T) {
		_, err := NewDailyFileWriter("svc", filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
	})
}
