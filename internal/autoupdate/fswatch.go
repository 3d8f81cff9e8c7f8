package autoupdate

import (
	"log/slog"
	"slices"

	"github.com/fsnotify/fsnotify"
)

// FsWatcher is the filesystem notification primitive as the manager
// consumes it. The fsnotify implementation satisfies it; tests inject a
// fake that delivers synthetic events.
type FsWatcher interface {
	Add(path string) error
	Remove(path string) error
	WatchList() []string
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

// notifyWatcher adapts *fsnotify.Watcher to FsWatcher.
type notifyWatcher struct {
	w *fsnotify.Watcher
}

// NewFsWatcher creates the production watcher backed by fsnotify.
func NewFsWatcher() (FsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &notifyWatcher{w: w}, nil
}

func (n *notifyWatcher) Add(path string) error         { return n.w.Add(path) }
func (n *notifyWatcher) Remove(path string) error      { return n.w.Remove(path) }
func (n *notifyWatcher) WatchList() []string           { return n.w.WatchList() }
func (n *notifyWatcher) Events() <-chan fsnotify.Event { return n.w.Events }
func (n *notifyWatcher) Errors() <-chan error          { return n.w.Errors }
func (n *notifyWatcher) Close() error                  { return n.w.Close() }

// addWatchPath registers an OS watch, skipping paths already watched so a
// re-registration never produces a duplicate watch. Failures are logged and
// the path simply proceeds unmonitored.
func (m *Manager) addWatchPath(path string) {
	if slices.Contains(m.watcher.WatchList(), path) {
		return
	}

	if err := m.watcher.Add(path); err != nil {
		m.logger.Warn("failed to watch cache file",
			slog.String("path", path), slog.String("error", err.Error()))
	}
}

// removeWatchPath releases an OS watch if one is registered. Removing an
// unwatched path is a no-op.
func (m *Manager) removeWatchPath(path string) {
	if !slices.Contains(m.watcher.WatchList(), path) {
		return
	}

	if err := m.watcher.Remove(path); err != nil {
		m.logger.Warn("failed to remove watch on cache file",
			slog.String("path", path), slog.String("error", err.Error()))
	}
}
