package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// DefaultKeep is the number of daily files kept when Config.Keep is zero
const DefaultKeep = 7

// DailyWriter writes to {prefix}_{YYYY-MM-DD}.log in dir and switches to a
// new file on the first write after local midnight.
type DailyWriter struct {
	dir    string
	prefix string
	keep   int
	now    func() time.Time

	mu     sync.Mutex
	day    string
	file   *os.File
	closed bool
}

// NewDailyWriter opens today's file, creating dir when needed
func NewDailyWriter(dir, prefix string, keep int) (*DailyWriter, error) {
	return newDailyWriter(dir, prefix, keep, time.Now)
}

func newDailyWriter(dir, prefix string, keep int, now func() time.Time) (*DailyWriter, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	w := &DailyWriter{dir: dir, prefix: prefix, keep: keep, now: now}
	if err := w.rotate(now().Format(dayLayout)); err != nil {
		return nil, err
	}
	return w, nil
}

// Path returns the file currently written to
func (w *DailyWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path(w.day)
}

func (w *DailyWriter) path(day string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.log", w.prefix, day))
}

func (w *DailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, os.ErrClosed
	}
	if day := w.now().Format(dayLayout); day != w.day {
		if err := w.rotate(day); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

// rotate must be called with mu held
func (w *DailyWriter) rotate(day string) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	f, err := os.OpenFile(w.path(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	w.file = f
	w.day = day
	w.prune()
	return nil
}

// prune deletes all but the newest keep files; names sort by date
func (w *DailyWriter) prune() {
	matches, err := filepath.Glob(filepath.Join(w.dir, w.prefix+"_*.log"))
	if err != nil {
		return
	}
	var days []string
	for _, m := range matches {
		day := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), w.prefix+"_"), ".log")
		if _, err := time.Parse(dayLayout, day); err == nil {
			days = append(days, m)
		}
	}
	if len(days) <= w.keep {
		return
	}
	sort.Strings(days)
	for _, old := range days[:len(days)-w.keep] {
		_ = os.Remove(old)
	}
}

// Close closes the current file
func (w *DailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		w.file = nil
		return fmt.Errorf("sync log file: %w", err)
	}
	err := w.file.Close()
	w.file = nil
	return err
}
