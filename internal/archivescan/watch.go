package archivescan

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Event reports a change to an archive file observed by Watch. Sidecar
// (.json) and .part files never generate events.
type Event struct {
	FileName string
	Removed  bool
}

// FsWatcher abstracts filesystem event monitoring, satisfied by
// *fsnotify.Watcher. Tests inject a fake.
type FsWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type fsnotifyWrapper struct{ w *fsnotify.Watcher }

func (fw *fsnotifyWrapper) Add(name string) error         { return fw.w.Add(name) }
func (fw *fsnotifyWrapper) Close() error                  { return fw.w.Close() }
func (fw *fsnotifyWrapper) Events() <-chan fsnotify.Event { return fw.w.Events }
func (fw *fsnotifyWrapper) Errors() <-chan error          { return fw.w.Errors }

// Watcher watches one game's subdirectory of a root (a download directory
// or an install directory) for file/directory arrivals and removals.
type Watcher struct {
	downloadDir    string
	game           string
	logger         *slog.Logger
	watcherFactory func() (FsWatcher, error)
}

// NewWatcher creates a Watcher for <root>/<game>/ (root itself when game is
// empty), where root is either a download directory (archive
// arrivals/removals) or an install directory (extracted-directory removals).
func NewWatcher(root, game string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		downloadDir: root,
		game:        game,
		logger:      logger,
		watcherFactory: func() (FsWatcher, error) {
			w, err := fsnotify.NewWatcher()
			if err != nil {
				return nil, fmt.Errorf("archivescan: creating watcher: %w", err)
			}

			return &fsnotifyWrapper{w: w}, nil
		},
	}
}

// Watch blocks until ctx is canceled, sending an Event for every archive
// create/remove observed in the directory. Renames are reported as a
// removal of the old name; callers re-Scan to pick up the new one.
func (w *Watcher) Watch(ctx context.Context, events chan<- Event) error {
	dir := filepath.Join(w.downloadDir, w.game)

	watcher, err := w.watcherFactory()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("archivescan: watching %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}

			w.handleEvent(ctx, ev, events)

		case err, ok := <-watcher.Errors():
			if !ok {
				return nil
			}

			w.logger.Warn("archivescan: watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event, events chan<- Event) {
	name := filepath.Base(ev.Name)

	if strings.HasSuffix(name, sidecarSuffix) || strings.HasSuffix(name, partSuffix) {
		return
	}

	out := Event{FileName: name}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		out.Removed = true
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		out.Removed = false
	default:
		return
	}

	select {
	case events <- out:
	case <-ctx.Done():
	}
}
