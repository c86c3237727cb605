// Package gate decides whether a client may open the device.
package gate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/umsd/internal/logger"
)

// Policy is consulted before every OPEN.
type Policy interface {
	MayOpen(ctx context.Context) bool
}

// AllowAll grants every open.
type AllowAll struct{}

func (AllowAll) MayOpen(context.Context) bool { return true }

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context) bool

func (f PolicyFunc) MayOpen(ctx context.Context) bool { return f(ctx) }

// Marker denies opens while a marker file exists. The launcher of a
// privileged title creates the file and removes it when the title exits.
type Marker struct {
	path    string
	running atomic.Bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewMarker starts watching path. The parent directory must exist.
func NewMarker(path string) (*Marker, error) {
	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("gate: create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gate: watch %s: %w", filepath.Dir(path), err)
	}

	m := &Marker{path: path, watcher: w, done: make(chan struct{})}
	m.running.Store(exists(path))

	go m.watch()
	return m, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (m *Marker) watch() {
	defer close(m.done)
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != m.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create):
				m.running.Store(true)
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				m.running.Store(false)
			default:
				continue
			}
			logger.Debug("Open gate changed", logger.KeyPath, m.path, "running", m.running.Load())
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			// Events may have been lost; resync from the filesystem.
			m.running.Store(exists(m.path))
			logger.Warn("Open gate watcher error", logger.KeyPath, m.path, logger.Err(err))
		}
	}
}

// MayOpen reports whether no title is running.
func (m *Marker) MayOpen(context.Context) bool {
	return !m.running.Load()
}

// Close stops the watcher.
func (m *Marker) Close() error {
	var err error
	m.once.Do(func() {
		err = m.watcher.Close()
		<-m.done
	})
	return err
}

// ErrUnknownType is returned by New for an unrecognised policy type.
var ErrUnknownType = errors.New("gate: unknown policy type")

// New builds the policy for a configured type ("allow" or "marker").
// The returned close function releases watcher resources.
func New(kind, markerPath string) (Policy, func() error, error) {
	switch kind {
	case "", "allow":
		return AllowAll{}, func() error { return nil }, nil
	case "marker":
		m, err := NewMarker(markerPath)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownType, kind)
	}
}
