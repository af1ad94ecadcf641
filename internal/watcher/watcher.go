package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/chasqui/internal/content"
)

// Watcher observes the content tree and feeds a Debouncer.
type Watcher struct {
	root   string
	fsw    *fsnotify.Watcher
	deb    *Debouncer
	logger *slog.Logger
}

// New creates a watcher on root. Batches are emitted after debounce of quiet
// and queued up to queue deep.
func New(root string, debounce time.Duration, queue int, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watcher: resolve root: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if err := addDirsRecursive(fsw, abs); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watcher: watch %s: %w", abs, err)
	}
	return &Watcher{
		root:   abs,
		fsw:    fsw,
		deb:    NewDebouncer(debounce, queue),
		logger: logger,
	}, nil
}

// Batches returns the debounced output. It is closed once Run returns.
func (w *Watcher) Batches() <-chan Batch {
	return w.deb.Out()
}

// RequestFull queues a full sync through the same channel as watch batches.
func (w *Watcher) RequestFull() {
	w.deb.RequestFull()
}

// Run forwards filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.deb.Run(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	w.logger.Info("watcher: started", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watcher: event queue overflow, scheduling full sync")
				w.deb.RequestFull()
				continue
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if hiddenPath(rel) {
		return
	}

	if ev.Op.Has(fsnotify.Create) {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if addErr := addDirsRecursive(w.fsw, ev.Name); addErr != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", rel),
					slog.String("error", addErr.Error()))
			} else {
				w.logger.Debug("watcher: watching new dir", slog.String("path", rel))
			}
			// Files may have landed before the directory was watched.
			w.deb.Add(rel)
			return
		}
	}

	if content.IsContentFile(rel) {
		if ev.Op == fsnotify.Chmod {
			return
		}
		w.logger.Debug("watcher: changed", slog.String("path", rel), slog.String("op", ev.Op.String()))
		w.deb.Add(rel)
		return
	}

	// A vanished non-content path may have been a directory of pages.
	if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		w.deb.Add(rel)
	}
}

func hiddenPath(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if content.Ignored(part) {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && content.Ignored(d.Name()) {
			return fs.SkipDir
		}
		return w.Add(path)
	})
}
