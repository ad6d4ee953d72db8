package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string // directories to watch (recursive)
	AllowedExts []string // nil -> default set
	InitialScan bool     // if true, walk roots and emit existing files
	SkipHidden  bool
	Debounce    time.Duration // coalesce rapid create/write bursts
	Logger      *slog.Logger
}

// StartWatcher emits paths of matching files created or written under the
// roots until ctx is done. Directories created later are watched too.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	exts := extSet(cfg.AllowedExts)
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if cfg.SkipHidden && path != root && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && allowed(path, exts) {
				initial = append(initial, path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	var (
		mu      sync.Mutex
		pending = map[string]struct{}{}
		timer   *time.Timer
		done    bool
	)
	// flush runs on the event goroutine or a debounce timer goroutine.
	flush := func() {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		for p := range pending {
			select {
			case evCh <- p:
			default:
				logger.Warn("watcher event dropped: channel full", "path", p)
			}
			delete(pending, p)
		}
	}

	go func() {
		defer close(errCh)
		defer func() {
			mu.Lock()
			done = true
			if timer != nil {
				timer.Stop()
			}
			close(evCh)
			mu.Unlock()
		}()
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("watcher close failed", "error", err)
			}
		}()

		for _, p := range initial {
			select {
			case evCh <- p:
			case <-ctx.Done():
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					tryAddDir(w, e.Name, logger)
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if !allowed(e.Name, exts) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					continue
				}
				mu.Lock()
				pending[e.Name] = struct{}{}
				debounce := cfg.Debounce > 0
				if debounce {
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(cfg.Debounce, flush)
				}
				mu.Unlock()
				if !debounce {
					flush()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// tryAddDir starts watching path if it is a directory.
func tryAddDir(w *fsnotify.Watcher, path string, logger *slog.Logger) {
	st, err := os.Stat(path)
	if err != nil || !st.IsDir() {
		return
	}
	if err := w.Add(path); err != nil {
		logger.Warn("failed to add new directory to watcher", "path", path, "error", err)
	}
}
