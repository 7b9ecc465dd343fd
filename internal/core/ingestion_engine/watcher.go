package ingestion_engine

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 2 * time.Second

// Watcher ingests PDFs as they appear in a directory. Events are debounced
// per path so a file still being copied is only ingested once it settles.
type Watcher struct {
	dir      string
	pipeline *Pipeline
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(dir string, pipeline *Pipeline, logger *zap.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		pipeline: pipeline,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// Watch blocks until the context is cancelled, ingesting every new or
// rewritten PDF under the watched directory.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watching for PDFs", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(watchDebounce)
		return
	}
	w.timers[path] = time.AfterFunc(watchDebounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if err := w.pipeline.Run(ctx, path); err != nil {
			w.logger.Error("ingestion failed", zap.String("document", path), zap.Error(err))
		}
	})
}
