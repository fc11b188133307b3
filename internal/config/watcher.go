package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 1500 * time.Millisecond

// Watcher reloads a file with a typed loader whenever it changes on disk and
// hands each successful result to the registered handlers. The parent
// directory is watched so files replaced by rename keep being tracked.
// Writes that leave the content unchanged do not trigger a reload, and a
// failed load keeps the last good value.
type Watcher[T any] struct {
	path     string
	debounce time.Duration
	loader   func(path string) (T, error)
	onError  func(error)
	logger   *slog.Logger

	mu       sync.Mutex
	handlers map[int]func(T)
	nextID   int
	last     T
	loadedAt time.Time
	content  []byte

	fsw      *fsnotify.Watcher
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption[T any] func(*Watcher[T])

// WithDebounce sets how long the file must be quiet before it is reloaded.
func WithDebounce[T any](d time.Duration) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.debounce = d
	}
}

// WithErrorHandler sets a callback for load failures.
func WithErrorHandler[T any](handler func(error)) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.onError = handler
	}
}

// NewConfigWatcher creates a watcher for path. Nothing is watched until Start.
func NewConfigWatcher[T any](
	path string,
	loader func(path string) (T, error),
	logger *slog.Logger,
	opts ...WatcherOption[T],
) *Watcher[T] {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher[T]{
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		loader:   loader,
		logger:   logger.With("path", path),
		handlers: make(map[int]func(T)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload registers a handler and returns a function that removes it.
func (w *Watcher[T]) OnReload(handler func(T)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = handler
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.handlers, id)
		w.mu.Unlock()
	}
}

// Last returns the most recent successfully loaded value and when it was
// loaded. The time is zero before the first load.
func (w *Watcher[T]) Last() (T, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.loadedAt
}

// Start records the current file content and begins watching.
func (w *Watcher[T]) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return err
	}

	if data, readErr := os.ReadFile(w.path); readErr == nil {
		w.mu.Lock()
		w.content = data
		w.mu.Unlock()
	}

	w.fsw = fsw
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run()

	w.logger.Info("Watching file for changes", "debounce", w.debounce)
	return nil
}

// Stop ends watching and waits for a pending reload to finish. It is safe to
// call more than once.
func (w *Watcher[T]) Stop() error {
	if w.fsw == nil {
		return nil
	}
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher[T]) run() {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create):
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C
			case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
				// A rename-over arrives as Create right after; until then the
				// last good value stays in effect.
				w.logger.Debug("Watched file moved away", "op", ev.Op.String())
			}

		case <-fire:
			fire = nil
			w.reloadIfChanged()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

func (w *Watcher[T]) reloadIfChanged() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.fail(err)
		}
		return
	}

	w.mu.Lock()
	same := w.content != nil && bytes.Equal(w.content, data)
	w.mu.Unlock()
	if same {
		w.logger.Debug("File touched without content change")
		return
	}

	if w.load() {
		w.mu.Lock()
		w.content = data
		w.mu.Unlock()
	}
}

// Reload loads the file now and notifies handlers, even if it is unchanged.
func (w *Watcher[T]) Reload() {
	w.load()
}

func (w *Watcher[T]) load() bool {
	value, err := w.loader(w.path)
	if err != nil {
		w.fail(err)
		return false
	}

	w.mu.Lock()
	w.last = value
	w.loadedAt = time.Now()
	handlers := make([]func(T), 0, len(w.handlers))
	for id := 0; id < w.nextID; id++ {
		if h, ok := w.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	w.mu.Unlock()

	w.logger.Info("File reloaded", "handlers", len(handlers))
	for _, h := range handlers {
		h(value)
	}
	return true
}

func (w *Watcher[T]) fail(err error) {
	w.logger.Warn("Failed to reload file, keeping previous value", "error", err)
	if w.onError != nil {
		w.onError(err)
	}
}
