// Package watcher monitors drop folders and hands finished spreadsheets to
// an import handler.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Config contains watcher settings.
type Config struct {
	Debounce        time.Duration // Quiet period before a path is handled (default: 2s)
	StableThreshold time.Duration // Size stability window; zero disables the check
	Patterns        []string      // Globs handed to the handler (default: *.xlsx)
	IgnorePatterns  []string      // Globs never handled (temp and lock files)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:        2 * time.Second,
		StableThreshold: time.Second,
		Patterns:        DefaultPatterns(),
		IgnorePatterns:  DefaultIgnorePatterns(),
	}
}

// Summary contains stats from one watch session.
type Summary struct {
	Imported int
	Failed   int
	Skipped  int
	Duration time.Duration
}

// Handler processes one spreadsheet. A nil error counts as imported.
type Handler func(ctx context.Context, path string) error

// Watcher monitors directories for new or rewritten spreadsheets.
type Watcher struct {
	config    Config
	handler   Handler
	logger    *zap.Logger
	filter    *FileFilter
	stability *StabilityChecker
	debouncer *Debouncer
	fsWatcher *fsnotify.Watcher

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startTime time.Time

	mu       sync.Mutex
	stopped  bool
	imported int
	failed   int
	skipped  int
}

// New returns a Watcher handing settled spreadsheets to handler.
func New(config Config, handler Handler, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		config:  config,
		handler: handler,
		logger:  logger,
		filter:  NewFileFilter(config.Patterns, config.IgnorePatterns),
	}
	if config.StableThreshold > 0 {
		w.stability = NewStabilityChecker(config.StableThreshold)
	}
	w.debouncer = NewDebouncer(config.Debounce, w.dispatch)
	return w
}

// Start begins watching dirs. It returns once the directories are
// registered; events are processed until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context, dirs []string) error {
	if len(dirs) == 0 {
		return errors.New("no directories to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			fsw.Close()
			return err
		}
		if err := fsw.Add(absDir); err != nil {
			fsw.Close()
			return err
		}
		w.logger.Info("watching directory", zap.String("dir", absDir))
	}

	w.fsWatcher = fsw
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.startTime = time.Now()

	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop shuts the watcher down, waits for in-flight imports and returns a
// summary of the session.
func (w *Watcher) Stop() *Summary {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	if n := w.debouncer.CancelAll(); n > 0 {
		w.logger.Info("dropping workbooks still being written", zap.Int("count", n))
	}
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	return &Summary{
		Imported: w.imported,
		Failed:   w.failed,
		Skipped:  w.skipped,
		Duration: time.Since(w.startTime),
	}
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			// a workbook moved away or deleted before it settled is forgotten
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if w.debouncer.Cancel(event.Name) {
					w.logger.Debug("workbook gone before import", zap.String("path", event.Name))
				}
				continue
			}
			// spreadsheets saved in place arrive as Write, copies as Create
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.filter.Accepts(event.Name) {
				w.logger.Debug("ignoring file", zap.String("path", event.Name))
				w.count(&w.skipped)
				continue
			}
			w.debouncer.Add(event.Name)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// dispatch runs on the debouncer's timer goroutine.
func (w *Watcher) dispatch(path string) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	if w.stability != nil {
		if err := w.stability.WaitForStable(w.ctx, path); err != nil {
			w.logger.Warn("file not ready", zap.String("path", path), zap.Error(err))
			w.count(&w.skipped)
			return
		}
	}

	if w.handler == nil {
		w.count(&w.skipped)
		return
	}
	if err := w.handler(w.ctx, path); err != nil {
		w.logger.Error("import failed", zap.String("path", path), zap.Error(err))
		w.count(&w.failed)
		return
	}
	w.logger.Info("imported", zap.String("path", path))
	w.count(&w.imported)
}

func (w *Watcher) count(n *int) {
	w.mu.Lock()
	*n++
	w.mu.Unlock()
}
