// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Tri-Phung/chatbot-project/internal/logging"
)

// DefaultDebounce coalesces the burst of events produced by one atomic write.
const DefaultDebounce = 150 * time.Millisecond

// =============================================================================
// WATCHER
// =============================================================================

// Watcher reports keys of a FileKV whose files changed on disk, typically
// because another ptcoach process wrote the same data directory.
// Events for the process's own writes are delivered too; consumers compare
// content to decide whether anything actually changed.
type Watcher struct {
	kv       *FileKV
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time // key -> last change time

	events chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewWatcher creates a watcher over kv's directory. Call Start to begin.
func NewWatcher(kv *FileKV, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		kv:       kv,
		watcher:  fw,
		debounce: debounce,
		logger:   logging.OrNop(logger),
		pending:  make(map[string]time.Time),
		events:   make(chan string, 8),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Events delivers changed keys. The channel is closed by Close.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Start adds the data directory to the watch list and starts processing.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.kv.Dir()); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

// Close stops watching and closes the Events channel.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.cancel()
		w.closeErr = w.watcher.Close()
		w.wg.Wait()
		close(w.events)
	})
	return w.closeErr
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Atomic writes land as Create (rename over target) on most platforms.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			key, ok := w.kv.KeyForPath(event.Name)
			if !ok {
				continue
			}
			w.mu.Lock()
			w.pending[key] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("storage watcher error", zap.Error(err))
		}
	}
}

// processPending flushes keys that have been quiet for the debounce period.
func (w *Watcher) processPending() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.debounce / 3)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			w.mu.Lock()
			var ready []string
			for key, changed := range w.pending {
				if now.Sub(changed) >= w.debounce {
					ready = append(ready, key)
					delete(w.pending, key)
				}
			}
			w.mu.Unlock()

			for _, key := range ready {
				w.logger.Debug("storage key changed on disk", zap.String("key", key))
				select {
				case w.events <- key:
				case <-w.ctx.Done():
					return
				}
			}
		}
	}
}
