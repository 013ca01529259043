// Package watcher turns filesystem notifications for the configuration file
// into debounced change signals.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long the file must stay quiet before a change is signalled
const DefaultSettle = 500 * time.Millisecond

// Watcher observes one file through its parent directory, so editors that
// replace the file by rename are still seen.
type Watcher struct {
	path    string
	name    string
	settle  time.Duration
	logger  *slog.Logger
	fs      *fsnotify.Watcher
	changes chan struct{}
}

// New starts watching the directory holding path
func New(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:    abs,
		name:    filepath.Base(abs),
		settle:  DefaultSettle,
		logger:  logger,
		fs:      fs,
		changes: make(chan struct{}, 1),
	}, nil
}

// SetSettle overrides the debounce delay; call before Run
func (w *Watcher) SetSettle(d time.Duration) {
	w.settle = d
}

// Changes delivers one value per settled burst of modifications. Signals are
// coalesced while the consumer is busy.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run processes notifications until ctx is done or the watcher is closed
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Debug("watching config file", "path", w.path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("config file event", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.settle)
			} else {
				timer.Reset(w.settle)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case w.changes <- struct{}{}:
				w.logger.Info("config file modified", "path", w.path)
			default:
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Debug("config watcher stopping")
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != w.name {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// Close stops the underlying notifications
func (w *Watcher) Close() error {
	return w.fs.Close()
}
