package ums

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/umsd/internal/logger"
)

// Notifier receives hardware-style notifications. The request loop
// implements it by filling a reply slot and posting the event sentinel.
type Notifier interface {
	NotifyDeviceChange(result int32) error
	NotifyAttachFinish(result int32) error
}

// Target is an image file whose presence stands for attached media.
type Target struct {
	Path string

	// Reopen is called after the file reappears and before attach is
	// reported. A failure is reported as a failed attach. May be nil.
	Reopen func() error
}

// Watcher turns create and remove events on image files into device-change
// and attach-finish notifications.
type Watcher struct {
	targets  map[string]Target
	notifier Notifier
	watcher  *fsnotify.Watcher
	done     chan struct{}
	once     sync.Once
}

// NewWatcher starts watching the parent directories of targets.
func NewWatcher(targets []Target, n Notifier) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("ums: create watcher: %w", err)
	}

	byPath := make(map[string]Target, len(targets))
	dirs := make(map[string]bool)
	for _, t := range targets {
		t.Path = filepath.Clean(t.Path)
		byPath[t.Path] = t
		dir := filepath.Dir(t.Path)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("ums: watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	uw := &Watcher{targets: byPath, notifier: n, watcher: w, done: make(chan struct{})}
	go uw.run()
	return uw, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			t, watched := w.targets[filepath.Clean(ev.Name)]
			if !watched {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				w.detached(t)
			case ev.Has(fsnotify.Create):
				w.attached(t)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Image watcher error", logger.Err(err))
		}
	}
}

func (w *Watcher) detached(t Target) {
	logger.Info("Image removed", logger.KeyPath, t.Path)
	if err := w.notifier.NotifyDeviceChange(0); err != nil {
		logger.Warn("Dropped device change", logger.KeyPath, t.Path, logger.Err(err))
	}
}

func (w *Watcher) attached(t Target) {
	logger.Info("Image created", logger.KeyPath, t.Path)
	if err := w.notifier.NotifyDeviceChange(1); err != nil {
		logger.Warn("Dropped device change", logger.KeyPath, t.Path, logger.Err(err))
	}

	var result int32
	if t.Reopen != nil {
		if err := t.Reopen(); err != nil {
			logger.Warn("Image reopen failed", logger.KeyPath, t.Path, logger.Err(err))
			result = -1
		}
	}
	if err := w.notifier.NotifyAttachFinish(result); err != nil {
		logger.Warn("Dropped attach finish", logger.KeyPath, t.Path, logger.Err(err))
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
