package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/verdict/pkg/source"
)

// WatcherConfig contains configuration for the file watcher.
type WatcherConfig struct {
	// DebounceInterval is the quiet period after the last file event
	// before a reload is triggered (default: 250ms)
	DebounceInterval time.Duration

	// Extensions is the list of file extensions that trigger a reload
	Extensions []string

	// SkipHidden ignores hidden files and directories
	SkipHidden bool
}

// DefaultWatcherConfig returns the default watcher configuration.
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		DebounceInterval: 250 * time.Millisecond,
		Extensions:       []string{".yaml", ".yml", ".json"},
		SkipHidden:       true,
	}
}

// FileWatcher watches rule files and triggers a callback after changes.
// Bursts of events are debounced into a single callback.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	config   *WatcherConfig
	paths    []string
	debounce *Debouncer

	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewFileWatcher creates a watcher for the given files or directories.
func NewFileWatcher(paths []string, config *WatcherConfig, logger *slog.Logger) (*FileWatcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	if config == nil {
		config = DefaultWatcherConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  watcher,
		logger:   logger.With("component", "reload.watcher"),
		config:   config,
		paths:    paths,
		debounce: NewDebouncer(config.DebounceInterval),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch processes file events until ctx is cancelled or Stop is called.
// onChange runs on the debouncer's goroutine after each quiet period.
func (fw *FileWatcher) Watch(ctx context.Context, onChange func()) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	defer func() {
		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
		close(fw.doneCh)
	}()

	for _, p := range fw.paths {
		if err := fw.addPath(p); err != nil {
			return fmt.Errorf("failed to watch %q: %w", p, err)
		}
	}

	fw.logger.Info("file watcher started",
		"paths", fw.paths,
		"debounce_ms", fw.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("file watcher stopped", "reason", "context cancelled")
			return nil

		case <-fw.stopCh:
			fw.logger.Info("file watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}

			// New directories must be watched explicitly.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !fw.hidden(event.Name) {
					if err := fw.addDirectory(event.Name); err != nil {
						fw.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}

			if !fw.shouldProcessEvent(event) {
				continue
			}

			fw.logger.Debug("file event detected", "path", event.Name, "op", event.Op.String())
			fw.debounce.Trigger(onChange)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			fw.logger.Error("file watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and releases the fsnotify handle.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	running := fw.running
	fw.mu.Unlock()

	if running {
		fw.stopOnce.Do(func() { close(fw.stopCh) })
		<-fw.doneCh
	}
	fw.debounce.Stop()

	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (fw *FileWatcher) addPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fw.addDirectory(path)
	}
	// Watch the parent so editors that replace files by rename are seen.
	return fw.watcher.Add(filepath.Dir(path))
}

func (fw *FileWatcher) addDirectory(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && fw.hidden(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", path, err)
		}
		return nil
	})
}

func (fw *FileWatcher) hidden(path string) bool {
	return fw.config.SkipHidden && strings.HasPrefix(filepath.Base(path), ".")
}

// shouldProcessEvent determines if an event should trigger a reload.
func (fw *FileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if fw.hidden(event.Name) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	for _, valid := range fw.config.Extensions {
		if ext == strings.ToLower(valid) {
			return true
		}
	}
	return false
}

// Watch reloads the manager whenever files of a file-backed source change.
// It blocks until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, config *WatcherConfig) error {
	w, ok := m.source.(source.Watchable)
	if !ok {
		return errors.New("source does not support file watching")
	}

	fw, err := NewFileWatcher(w.WatchPaths(), config, m.logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	return fw.Watch(ctx, func() {
		// Errors are logged and reported to listeners by reload.
		_ = m.reload(ctx, TriggerWatch)
	})
}

// Debouncer collects rapid events and runs the latest callback only after
// a quiet period.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback after the interval, replacing any pending
// callback.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	cb := d.callback
	d.callback = nil
	stopped := d.stopped
	d.mu.Unlock()

	if cb != nil && !stopped {
		cb()
	}
}

// Stop cancels any pending callback. Further triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
