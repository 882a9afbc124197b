package daemon

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Watcher owns the fsnotify instance. fsnotify watches single directories,
// so recursion is emulated: every subdirectory of a root is added, and
// directories created later are picked up from their create events.
type Watcher struct {
	fsw *fsnotify.Watcher
	log zerolog.Logger
}

// NewWatcher creates a watcher over the given roots.
func NewWatcher(roots []string, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "failed to create filesystem watcher")
	}

	w := &Watcher{fsw: fsw, log: log}
	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			// Permission problems disable the root for this run, they do
			// not kill the daemon.
			log.Warn().Err(err).Str("root", root).Msg("watch root skipped")
		}
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				w.log.Debug().Err(err).Str("dir", path).Msg("watch add failed")
			}
		}
		return nil
	})
}

// Run forwards create/write/remove events into the debouncer until the
// context is cancelled. New directories are added to the watch set as they
// appear.
func (w *Watcher) Run(ctx context.Context, debouncer *Debouncer) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.log.Debug().Err(err).Str("dir", event.Name).Msg("watch extend failed")
					}
					continue
				}
			}

			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
				event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				debouncer.Trigger(event.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
