package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewWritesTextAndJSON(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "autosync.log")

	l, err := New(Config{Level: "info", File: path, Service: "autosync", Stderr: &stderr})
	require.NoError(t, err)

	l.Slog().Info("job finished", "project", "notes")
	l.Slog().Debug("hidden")
	require.NoError(t, l.Close())

	assert.Contains(t, stderr.String(), "msg=\"job finished\"")
	assert.Contains(t, stderr.String(), "service=autosync")
	assert.NotContains(t, stderr.String(), "hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "job finished", entry["msg"])
	assert.Equal(t, "notes", entry["project"])
	assert.Equal(t, "autosync", entry["service"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty", Quiet: true})
	assert.Error(t, err)
}

func TestNewQuietWithoutFile(t *testing.T) {
	l, err := New(Config{Quiet: true})
	require.NoError(t, err)
	l.Slog().Info("dropped")
	assert.NoError(t, l.Close())
}

func TestNewDirUsesServiceAndDate(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir, Service: "autosync", Quiet: true})
	require.NoError(t, err)
	l.Slog().Info("hello")
	require.NoError(t, l.Close())

	want := filepath.Join(dir, "autosync_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func TestDailyWriterRotatesAtMidnight(t *testing.T) {
	dir := t.TempDir()
	clock := &stepClock{t: time.Date(2025, 5, 1, 23, 59, 0, 0, time.Local)}

	w, err := newDailyWriter(dir, "autosync", 7, clock.now)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("before\n"))
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = w.Write([]byte("after\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "autosync_2025-05-02.log"), w.Path())

	first, err := os.ReadFile(filepath.Join(dir, "autosync_2025-05-01.log"))
	require.NoError(t, err)
	assert.Equal(t, "before\n", string(first))

	second, err := os.ReadFile(filepath.Join(dir, "autosync_2025-05-02.log"))
	require.NoError(t, err)
	assert.Equal(t, "after\n", string(second))
}

func TestDailyWriterWriteAfterClose(t *testing.T) {
	clock := &stepClock{t: time.Date(2025, 5, 1, 12, 0, 0, 0, time.Local)}
	w, err := newDailyWriter(t.TempDir(), "autosync", 7, clock.now)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late\n"))
	assert.ErrorIs(t, err, os.ErrClosed)

	clock.t = clock.t.AddDate(0, 0, 1)
	_, err = w.Write([]byte("next day\n"))
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, w.Close())
}

func TestDailyWriterKeepsNewestFiles(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.Local)
	for i := 0; i < 5; i++ {
		name := "autosync_" + start.AddDate(0, 0, i).Format("2006-01-02") + ".log"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0640))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "autosync_notes.log"), nil, 0640))

	clock := &stepClock{t: start.AddDate(0, 0, 5)}
	w, err := newDailyWriter(dir, "autosync", 3, clock.now)
	require.NoError(t, err)
	defer w.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "autosync_*.log"))
	require.NoError(t, err)
	var names []string
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	assert.ElementsMatch(t, []string{
		"autosync_2025-05-04.log",
		"autosync_2025-05-05.log",
		"autosync_2025-05-06.log",
		"autosync_notes.log",
	}, names)
}
