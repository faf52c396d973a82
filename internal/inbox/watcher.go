// Package inbox watches drop directories for receipt files and hands them to
// the workflow. Files are named "<request-id>-<anything>.<ext>", e.g.
// "42-acme-receipt.pdf".
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// SubmitFunc receives a dropped receipt. Errors are logged, not retried.
type SubmitFunc func(ctx context.Context, requestID int64, name string, content []byte) error

// Watcher watches inbox directories and submits dropped receipt files.
type Watcher struct {
	dirs       []string
	extensions []string
	submit     SubmitFunc
	logger     *zap.Logger
	debounce   time.Duration

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	debounceMap map[string]*time.Timer
	started     bool
	done        chan struct{}
	stopOnce    sync.Once
}

// NewWatcher creates an inbox watcher over dirs. extensions filters which
// files are picked up (empty = all).
func NewWatcher(dirs, extensions []string, submit SubmitFunc, logger *zap.Logger) *Watcher {
	return &Watcher{
		dirs:        dirs,
		extensions:  extensions,
		submit:      submit,
		logger:      logger,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
}

// Start begins watching. Missing inbox directories are created. The watcher
// runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	for _, dir := range w.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = watcher.Close()
			w.mu.Unlock()
			return fmt.Errorf("failed to create inbox directory: %w", err)
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			w.mu.Unlock()
			return fmt.Errorf("failed to watch inbox directory: %w", err)
		}
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	w.logger.Info("receipt inbox watching", zap.Strings("dirs", w.dirs))
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("inbox watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}
	path := ev.Name
	if !w.matchExtension(path) {
		return
	}
	w.debounceSubmit(ctx, path)
}

// debounceSubmit coalesces the create+write bursts copies produce into one
// submit per file.
func (w *Watcher) debounceSubmit(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.submitFile(ctx, path)
	})
}

func (w *Watcher) submitFile(ctx context.Context, path string) {
	name := filepath.Base(path)
	requestID, err := ParseRequestID(name)
	if err != nil {
		w.logger.Warn("ignoring inbox file", zap.String("file", name), zap.Error(err))
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("failed to read inbox file", zap.String("file", name), zap.Error(err))
		return
	}
	if err := w.submit(ctx, requestID, name, content); err != nil {
		w.logger.Warn("failed to submit receipt from inbox",
			zap.String("file", name),
			zap.Int64("request_id", requestID),
			zap.Error(err))
		return
	}
	w.logger.Info("receipt submitted from inbox",
		zap.String("file", name),
		zap.Int64("request_id", requestID))
}

// ParseRequestID extracts the leading request ID from an inbox filename of
// the form "<id>-<anything>.<ext>".
func ParseRequestID(name string) (int64, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	idPart, _, found := strings.Cut(base, "-")
	if !found {
		return 0, fmt.Errorf("filename %q has no request id prefix", name)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("filename %q has no request id prefix", name)
	}
	return id, nil
}

func (w *Watcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range w.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
