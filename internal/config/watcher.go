package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const watchDebounce = 500 * time.Millisecond

// ReloadFunc receives the freshly loaded configuration after the file
// on disk changed and parsed cleanly.
type ReloadFunc func(cfg *Config)

// Watcher re-reads the config file when it changes and hands the result
// to the registered callback. Parse or validation failures keep the
// previous configuration in effect.
type Watcher struct {
	path     string
	onReload ReloadFunc

	mu      sync.Mutex
	started bool
}

// NewWatcher constructs a watcher for the given config file.
func NewWatcher(path string, onReload ReloadFunc) *Watcher {
	if path == "" || onReload == nil {
		return nil
	}
	return &Watcher{path: path, onReload: onReload}
}

// Start launches the watch loop in a background goroutine. It returns
// after the filesystem watch is registered; cancel ctx to stop.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace the file by rename, which
	// drops a watch registered on the file itself.
	if err = fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return err
	}

	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	defer func() { _ = fw.Close() }()

	var timer *time.Timer
	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, w.reload)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Errorf("config watcher: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Errorf("config watcher: reload skipped: %v", err)
		return
	}
	log.Infof("config watcher: %s reloaded", w.path)
	w.onReload(cfg)
}
