// Package watch reports changes to asset files on disk.
package watch

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 150 * time.Millisecond

// Watcher publishes an AssetChangedEvent when a watched file is written or replaced.
// Parent directories are watched so files replaced by rename are still seen.
type Watcher struct {
	logger   *slog.Logger
	bus      ports.EventBus
	fs       *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	elements map[domain.Element]string
	dirs     map[string]int
	timers   map[string]*time.Timer
	closed   bool

	wg sync.WaitGroup
}

// NewWatcher starts a watcher publishing to bus.
func NewWatcher(logger *slog.Logger, bus ports.EventBus, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		logger:   logger,
		bus:      bus,
		fs:       fs,
		debounce: debounce,
		elements: make(map[domain.Element]string),
		dirs:     make(map[string]int),
		timers:   make(map[string]*time.Timer),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch implements ports.AssetWatcher.
func (w *Watcher) Watch(element domain.Element, path string) error {
	if path == "" {
		return domain.ErrInvalidFilePath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return domain.ErrNotInitialized
	}
	if w.elements[element] == abs {
		return nil
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.unwatchLocked(element)
	w.elements[element] = abs
	w.logger.Debug("watching asset", slog.String("element", string(element)), slog.String("path", abs))
	return nil
}

// Unwatch implements ports.AssetWatcher.
func (w *Watcher) Unwatch(element domain.Element) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unwatchLocked(element)
}

func (w *Watcher) unwatchLocked(element domain.Element) {
	abs, ok := w.elements[element]
	if !ok {
		return
	}
	delete(w.elements, element)

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if err := w.fs.Remove(dir); err != nil {
			w.logger.Debug("unwatching directory", slog.String("dir", dir), slog.Any("error", err))
		}
	}
}

// Close stops the watcher. Pending notifications are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = nil
	w.mu.Unlock()

	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule(filepath.Clean(event.Name))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("asset watcher error", slog.Any("error", err))
		}
	}
}

// schedule (re)starts the debounce timer for a changed path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.watchedLocked(path) {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	var changed []domain.Element
	for element, p := range w.elements {
		if p == path {
			changed = append(changed, element)
		}
	}
	w.mu.Unlock()

	for _, element := range changed {
		w.logger.Info("asset changed on disk", slog.String("element", string(element)), slog.String("path", path))
		w.bus.Publish(domain.NewAssetChangedEvent(element, path))
	}
}

func (w *Watcher) watchedLocked(path string) bool {
	for _, p := range w.elements {
		if p == path {
			return true
		}
	}
	return false
}

var _ ports.AssetWatcher = (*Watcher)(nil)
