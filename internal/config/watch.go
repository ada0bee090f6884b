package config

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a configuration file whenever it changes on disk and
// delivers the newly parsed File to a callback.
type Watcher struct {
	w    *fsnotify.Watcher
	path string
	errC chan error
	done chan struct{}
}

// Watch starts watching path for writes and invokes onChange with the
// freshly reloaded File each time one occurs. Parse errors are delivered
// on the returned Watcher's Errors channel rather than calling onChange.
func Watch(path string, onChange func(*File)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(path); err != nil {
		_ = w.Close()

		return nil, err
	}

	watcher := &Watcher{
		w:    w,
		path: path,
		errC: make(chan error, 1),
		done: make(chan struct{}),
	}

	go watcher.loop(onChange)

	return watcher, nil
}

func (cw *Watcher) loop(onChange func(*File)) {
	defer close(cw.done)

	for {
		select {
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			f, err := Load(cw.path)
			if err != nil {
				select {
				case cw.errC <- err:
				default:
				}

				continue
			}

			onChange(f)
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}

			select {
			case cw.errC <- err:
			default:
			}
		}
	}
}

// Errors returns a channel of errors encountered while reloading.
func (cw *Watcher) Errors() <-chan error { return cw.errC }

// Close stops watching and releases the underlying OS resources.
func (cw *Watcher) Close() error {
	err := cw.w.Close()
	<-cw.done

	return err
}
