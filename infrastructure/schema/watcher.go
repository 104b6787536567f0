package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDuration = 100 * time.Millisecond

// Watcher re-applies schema files when they change. Classes are only ever
// added: removing a block from a file leaves the class registered.
type Watcher struct {
	path    string
	loader  *Loader
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopCh  chan struct{}
	done    chan struct{}
}

// NewWatcher watches a schema file or directory. Watching a file also watches
// its directory so editors that save by rename are seen.
func NewWatcher(path string, loader *Loader, logger *zap.Logger) (*Watcher, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat schema path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch schema path: %w", err)
	}

	return &Watcher{
		path:    path,
		loader:  loader,
		watcher: fw,
		logger:  logger,
		pending: make(map[string]*time.Timer),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching; reloads run with ctx.
func (w *Watcher) Start(ctx context.Context) {
	go w.watchLoop(ctx)
	w.logger.Info("Schema watcher started", zap.String("path", w.path))
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	<-w.done

	w.mu.Lock()
	for _, t := range w.pending {
		t.Stop()
	}
	w.mu.Unlock()
	w.logger.Info("Schema watcher stopped")
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule(ctx, event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Schema watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	if filepath.Clean(name) == filepath.Clean(w.path) {
		return true
	}
	info, err := os.Stat(w.path)
	return err == nil && info.IsDir() && strings.HasSuffix(name, FileExtension)
}

// schedule debounces reloads per file.
func (w *Watcher) schedule(ctx context.Context, file string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[file]; ok {
		t.Stop()
	}
	w.pending[file] = time.AfterFunc(debounceDuration, func() {
		w.mu.Lock()
		delete(w.pending, file)
		w.mu.Unlock()
		w.reload(ctx, file)
	})
}

func (w *Watcher) reload(ctx context.Context, file string) {
	if _, err := os.Stat(file); err != nil {
		return
	}
	w.logger.Info("Schema file changed, reloading", zap.String("file", file))
	if _, err := w.loader.LoadFile(ctx, file); err != nil {
		w.logger.Error("Failed to reload schema file, keeping current classes",
			zap.String("file", file),
			zap.Error(err),
		)
	}
}
