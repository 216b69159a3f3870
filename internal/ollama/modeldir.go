// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// MODEL DIRECTORY VALIDATION
// =============================================================================

// IsModelPath reports whether dir looks like an Ollama model store: it must
// contain readable blobs/ and manifests/ subdirectories, and manifests/ must
// not be empty. Used to sanity-check a user-supplied OLLAMA_MODELS directory
// before pointing a spawned server at it.
func IsModelPath(dir string) bool {
	if dir == "" {
		return false
	}

	blobs := filepath.Join(dir, "blobs")
	if info, err := os.Stat(blobs); err != nil || !info.IsDir() {
		return false
	}

	manifests := filepath.Join(dir, "manifests")
	if info, err := os.Stat(manifests); err != nil || !info.IsDir() {
		return false
	}

	entries, err := os.ReadDir(manifests)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// =============================================================================
// MODEL DIRECTORY WATCHER
// =============================================================================

// ModelDirWatcher watches the manifests tree of a model directory and fires
// a debounced callback when models are installed or removed outside this
// process (another session pulling a model, for instance). The callback runs
// on the watcher goroutine.
type ModelDirWatcher struct {
	dir      string
	onChange func()
	debounce time.Duration

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending time.Time
}

// NewModelDirWatcher creates a watcher for the given model directory. The
// directory must already pass IsModelPath.
func NewModelDirWatcher(dir string, onChange func()) (*ModelDirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &ModelDirWatcher{
		dir:      dir,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		watcher:  watcher,
	}, nil
}

// Watch starts watching. Close stops it.
func (w *ModelDirWatcher) Watch() error {
	if err := w.addRecursive(filepath.Join(w.dir, "manifests")); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go w.processEvents(ctx)
	go w.processPending(ctx)

	return nil
}

// addRecursive adds a directory and its subdirectories to the watch list.
// Manifest trees are shallow (registry/namespace/model/tag) so the walk is
// cheap.
func (w *ModelDirWatcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		_ = w.watcher.Add(path)
		return nil
	})
}

func (w *ModelDirWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

			// New tag directories need watching too.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *ModelDirWatcher) processPending(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			fire := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if fire {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if fire && w.onChange != nil {
				w.onChange()
			}
		}
	}
}

// Close stops watching and releases resources.
func (w *ModelDirWatcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
