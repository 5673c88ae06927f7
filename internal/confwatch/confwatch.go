// Package confwatch implements C8, the config file watcher (spec §4.10): a
// non-recursive fsnotify watch on the config file's directory, filtered to
// the config path and debounced so a burst of editor writes triggers a
// single reparse, grounded on the debounce-timer idiom the pack's tiered
// filesystem watcher uses.
package confwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/piri-wm/piri/internal/config"
	"github.com/piri-wm/piri/internal/logging"
	"github.com/piri-wm/piri/internal/notify"
)

const debounceDelay = 300 * time.Millisecond

// Watcher reparses the config file on modification and invokes onReload
// with the new value, or leaves the previous config in effect and notifies
// on a parse failure (spec §4.10, §7 "config errors on reload").
type Watcher struct {
	path     string
	onReload func(*config.File)
}

// New returns a Watcher for path. onReload is called synchronously from the
// watcher's own goroutine whenever path is successfully reparsed.
func New(path string, onReload func(*config.File)) *Watcher {
	return &Watcher{path: path, onReload: onReload}
}

// Run blocks, watching the config file's containing directory (fsnotify
// does not reliably track inode replacement via direct-file watches, the
// common case for editors that write-then-rename) until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return err
	}

	var timer *time.Timer
	timerC := func() <-chan time.Time {
		if timer == nil {
			return nil
		}
		return timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !(ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceDelay)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warnf("confwatch: %s", err)
		case <-timerC():
			timer = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	gen := uuid.NewString()
	log := logging.With("reload_id", gen)
	f, err := config.Load(w.path)
	if err != nil {
		log.Error(fmt.Sprintf("confwatch: reparse %s failed, keeping previous config: %s", w.path, err))
		notify.Notify("piri config reload failed", err.Error())
		return
	}
	log.Info(fmt.Sprintf("confwatch: reloaded %s", w.path))
	w.onReload(f)
}
