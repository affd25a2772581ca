package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// BoundedConfig configures the bounded cache.
type BoundedConfig struct {
	// MaxEntries is the entry capacity. A Set that would exceed it evicts
	// the least-recently-accessed entry.
	// Default: 1000
	MaxEntries int

	// DefaultTTL is applied when Set receives a non-positive TTL.
	// Default: 5 minutes
	DefaultTTL time.Duration

	// MaxTTL clamps any requested TTL. Zero means no maximum.
	MaxTTL time.Duration

	// Stat checks live fingerprints. Default: OSStat.
	Stat StatFunc
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (c BoundedConfig) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = c.DefaultTTL
	}
	if c.MaxTTL > 0 && ttl > c.MaxTTL {
		ttl = c.MaxTTL
	}
	return ttl
}

// entry is a single cached value plus its bookkeeping.
type entry struct {
	key            string
	value          any
	createdAt      time.Time
	expiresAt      time.Time
	lastAccessedAt time.Time
	size           int
	fingerprint    *Fingerprint
}

// SetOption customizes a single Set call.
type SetOption func(*entry) error

// Bounded is a fixed-capacity cache with TTL expiry, LRU eviction, and
// optional file-fingerprint freshness checks.
type Bounded struct {
	config BoundedConfig

	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List // front = most recently accessed
	hits     uint64
	misses   uint64
	evicted  uint64
	expired  uint64
}

// NewBounded creates a bounded cache with the given configuration.
func NewBounded(config BoundedConfig) *Bounded {
	// Apply defaults
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	if config.Stat == nil {
		config.Stat = OSStat
	}

	return &Bounded{
		config:  config,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// WithSourceFile attaches a file fingerprint captured by the cache's
// StatFunc. The entry becomes a miss once the file changes on disk.
func (c *Bounded) WithSourceFile(path string) SetOption {
	return func(e *entry) error {
		fp, err := c.config.Stat(path)
		if err != nil {
			return err
		}
		e.fingerprint = &fp
		return nil
	}
}

// Get retrieves a value. Expired or fingerprint-stale entries are removed
// and reported as misses.
func (c *Bounded) Get(_ context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := elem.Value.(*entry)

	if time.Now().After(e.expiresAt) {
		c.removeLocked(elem)
		c.expired++
		c.misses++
		return nil, false
	}

	if e.fingerprint != nil && !e.fingerprint.Matches(c.config.Stat) {
		c.removeLocked(elem)
		c.expired++
		c.misses++
		return nil, false
	}

	e.lastAccessedAt = time.Now()
	c.lru.MoveToFront(elem)
	c.hits++
	return e.value, true
}

// Set stores a value, evicting the least-recently-accessed entry when the
// cache is at capacity.
func (c *Bounded) Set(_ context.Context, key string, value any, ttl time.Duration, opts ...SetOption) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	now := time.Now()
	e := &entry{
		key:            key,
		value:          value,
		createdAt:      now,
		expiresAt:      now.Add(c.config.EffectiveTTL(ttl)),
		lastAccessedAt: now,
		size:           estimateSize(value),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		// Overwrite keeps the original createdAt for eviction tie-breaks.
		e.createdAt = elem.Value.(*entry).createdAt
		elem.Value = e
		c.lru.MoveToFront(elem)
		return nil
	}

	if c.lru.Len() >= c.config.MaxEntries {
		c.evictLocked()
	}
	c.entries[key] = c.lru.PushFront(e)
	return nil
}

// Invalidate removes a value. Idempotent - no error on miss.
func (c *Bounded) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
	return nil
}

// InvalidatePath removes every entry fingerprinted against path and
// returns how many were removed.
func (c *Bounded) InvalidatePath(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, elem := range c.entries {
		e := elem.Value.(*entry)
		if e.fingerprint != nil && e.fingerprint.Path == path {
			c.removeLocked(elem)
			removed++
		}
	}
	return removed
}

// Clear removes all entries. Counters are preserved.
func (c *Bounded) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	return nil
}

// Sweep removes expired and fingerprint-stale entries and returns how many
// were dropped. Intended to be driven by an owned maintenance loop rather
// than a background timer.
func (c *Bounded) Sweep(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	swept := 0
	for _, elem := range c.entries {
		e := elem.Value.(*entry)
		stale := now.After(e.expiresAt) ||
			(e.fingerprint != nil && !e.fingerprint.Matches(c.config.Stat))
		if stale {
			c.removeLocked(elem)
			c.expired++
			swept++
		}
	}
	return swept
}

// Stats returns a snapshot of cache counters.
func (c *Bounded) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evicted,
		Expirations: c.expired,
		Size:        c.lru.Len(),
		HitRate:     rate,
	}
}

// Len returns the current number of entries.
func (c *Bounded) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// fingerprintedPaths returns the distinct source paths currently guarded by
// fingerprints. Used by the watcher to register fsnotify paths.
func (c *Bounded) fingerprintedPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{})
	var paths []string
	for _, elem := range c.entries {
		e := elem.Value.(*entry)
		if e.fingerprint == nil {
			continue
		}
		if _, ok := seen[e.fingerprint.Path]; ok {
			continue
		}
		seen[e.fingerprint.Path] = struct{}{}
		paths = append(paths, e.fingerprint.Path)
	}
	return paths
}

// evictLocked drops the entry with the oldest lastAccessedAt; the LRU list
// keeps that entry at the back, with insertion order breaking ties by
// oldest createdAt.
func (c *Bounded) evictLocked() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	c.removeLocked(back)
	c.evicted++
}

func (c *Bounded) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry)
	c.lru.Remove(elem)
	delete(c.entries, e.key)
}

// estimateSize approximates an entry's payload size in bytes. It informs
// dispatch and accounting only; it is not an allocation measurement.
func estimateSize(v any) int {
	switch val := v.(type) {
	case nil:
		return 0
	case []byte:
		return len(val)
	case string:
		return len(val)
	default:
		return 64
	}
}

// Ensure Bounded implements Cache
var _ Cache = (*Bounded)(nil)
