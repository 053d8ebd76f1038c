package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/shshalom/voicesmith-mcp/internal/logging"
)

// ChangeHandler is invoked with the freshly reloaded Config whenever the
// on-disk config.json changes.
type ChangeHandler func(cfg *Config)

// Watcher watches config.json for writes and reloads it, debounced, so
// settings such as the VAD threshold take effect without a restart.
type Watcher struct {
	path     string
	log      *logging.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	handlers []ChangeHandler
	stopCh   chan struct{}
}

// NewWatcher builds a Watcher for the config file at path.
func NewWatcher(path string, log *logging.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{path: path, log: log, watcher: w, debounce: 300 * time.Millisecond}, nil
}

// OnChange registers a handler called on every debounced reload.
func (w *Watcher) OnChange(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching the config file's directory (§9: watch the
// directory, not the file itself, since editors and atomic-save tools
// commonly replace the inode on write).
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.stopCh = make(chan struct{})
	go w.loop()
	return nil
}

// Stop halts the watcher.
func (w *Watcher) Stop() {
	if w.stopCh != nil {
		close(w.stopCh)
	}
	_ = w.watcher.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config", "watch error", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load()
	if err != nil {
		w.log.Warn("config", "reload failed", map[string]interface{}{"error": err.Error()})
		return
	}

	w.mu.Lock()
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, h := range handlers {
		h(cfg)
	}
	w.log.Info("config", "reloaded", map[string]interface{}{"path": w.path})
}
