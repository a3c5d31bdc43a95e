package scripts

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Registry when its directory changes.
type Watcher struct {
	registry      *Registry
	watcher       *fsnotify.Watcher
	mu            sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	onReload      func()
}

func NewWatcher(r *Registry) *Watcher {
	return &Watcher{
		registry:      r,
		debounceDelay: 500 * time.Millisecond,
		stopChan:      make(chan struct{}),
	}
}

// OnReload registers a callback run after every reload, mainly for tests.
func (w *Watcher) OnReload(fn func()) { w.onReload = fn }

// Start begins watching. The directory is created if missing.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.registry.dir, 0755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.registry.dir); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher
	w.registry.log.Info().Str("dir", w.registry.dir).Msg("Watching extraction scripts")
	go w.processEvents()
	return nil
}

func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.registry.log.Warn().Err(err).Msg("Script watcher error")
		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Chmod fires on plain reads; ignore it.
	if event.Op == fsnotify.Chmod {
		return
	}
	if !strings.EqualFold(filepath.Ext(event.Name), ".js") {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.stopChan:
		return
	default:
	}
	if err := w.registry.Reload(); err != nil {
		w.registry.log.Error().Err(err).Msg("Failed to reload extraction scripts")
		return
	}
	if w.onReload != nil {
		w.onReload()
	}
}
