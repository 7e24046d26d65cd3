package rocks

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce groups bursts of editor writes into one reload.
const watchDebounce = 100 * time.Millisecond

// WatchTemplates watches root and every directory below it. onChange is
// called with the last changed path once events stop arriving for
// watchDebounce. New directories are watched as they appear. The returned
// function stops watching.
func WatchTemplates(root string, onChange func(name string), log debugLogger) (func() error, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(w, root); err != nil {
		w.Close()
		return nil, err
	}
	if log == nil {
		log = nopLogger{}
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
		last  string
	)
	fire := func() {
		mu.Lock()
		name := last
		mu.Unlock()
		onChange(name)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Create == fsnotify.Create {
					if err := addRecursive(w, ev.Name); err != nil {
						log.Warnf("watch %s: %v", ev.Name, err)
					}
				}
				log.Debugf("template change: %s", ev)
				mu.Lock()
				last = ev.Name
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, fire)
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("template watcher: %v", err)
			}
		}
	}()

	return func() error {
		err := w.Close()
		<-done
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		return err
	}, nil
}

// addRecursive adds root if it is a directory, along with its subdirectories.
func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Files removed between the event and the walk are not errors.
			if p != root {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
