package cache

import (
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates fingerprinted entries as soon as their source files
// change, instead of waiting for the next Get to stat them. Lifecycle is
// explicit: Start begins the event loop, Close stops it.
type Watcher struct {
	cache *Bounded
	fw    *fsnotify.Watcher

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}

	invalidated atomic.Uint64
}

// NewWatcher creates a watcher bound to the given cache.
func NewWatcher(c *Bounded) (*Watcher, error) {
	if c == nil {
		return nil, ErrNilCache
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		cache: c,
		fw:    fw,
		done:  make(chan struct{}),
	}, nil
}

// Watch registers a path for change events.
func (w *Watcher) Watch(path string) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrWatchClosed
	}
	return w.fw.Add(path)
}

// WatchFingerprinted registers every source path the cache currently
// guards with a fingerprint.
func (w *Watcher) WatchFingerprinted() error {
	for _, path := range w.cache.fingerprintedPaths() {
		if err := w.Watch(path); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the event loop. Calling Start more than once is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	go w.loop()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Create) == 0 {
				continue
			}
			n := w.cache.InvalidatePath(event.Name)
			w.invalidated.Add(uint64(n))
		case _, ok := <-w.fw.Errors:
			// Watch errors are absorbed; the stat-on-read check still
			// catches anything the watcher misses.
			if !ok {
				return
			}
		}
	}
}

// Invalidated returns how many entries the watcher has removed.
func (w *Watcher) Invalidated() uint64 {
	return w.invalidated.Load()
}

// Close stops the event loop and releases the underlying watcher.
// Idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	return w.fw.Close()
}
