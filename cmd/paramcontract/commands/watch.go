package commands

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// fileWatcher reports debounced changes to a set of files. It watches the
// parent directories so that files replaced by rename, as most editors do on
// save, keep being observed.
type fileWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer

	onUpdate chan<- error
	Update   <-chan error
}

func watchFiles(paths []string, debounce time.Duration) (*fileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	files := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = watcher.Close()
			return nil, err
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, err
		}
	}

	updateCh := make(chan error, 1)
	w := &fileWatcher{
		watcher:  watcher,
		files:    files,
		debounce: debounce,
		onUpdate: updateCh,
		Update:   updateCh,
	}
	go w.process()
	return w, nil
}

func (w *fileWatcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

// notify delivers err unless an undelivered update is already pending.
func (w *fileWatcher) notify(err error) {
	select {
	case w.onUpdate <- err:
	default:
	}
}

func (w *fileWatcher) debounceUpdate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.notify(nil) })
}

func (w *fileWatcher) process() {
	for {
		select {
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.notify(err)
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.files[filepath.Clean(ev.Name)] {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				w.debounceUpdate()
			}
		}
	}
}
