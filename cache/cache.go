package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache    = errors.New("cache: cache is nil")
	ErrInvalidKey  = errors.New("cache: key is invalid")
	ErrKeyTooLong  = errors.New("cache: key exceeds max length")
	ErrStatFailed  = errors.New("cache: fingerprint stat failed")
	ErrWatchClosed = errors.New("cache: watcher is closed")
)

// Cache is the interface for storing operation results by content address.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get never errors; it returns (nil, false) on miss, expiry,
//   or fingerprint mismatch.
type Cache interface {
	// Get retrieves a cached value. Returns (nil, false) on miss.
	Get(ctx context.Context, key string) (any, bool)

	// Set stores a value with the given TTL. TTL<=0 falls back to the
	// configured default.
	Set(ctx context.Context, key string, value any, ttl time.Duration, opts ...SetOption) error

	// Invalidate removes a cached value. Idempotent - no error on miss.
	Invalidate(ctx context.Context, key string) error

	// Clear removes all cached values.
	Clear(ctx context.Context) error

	// Stats returns a snapshot of cache counters.
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
	Size        int     `json:"size"`
	HitRate     float64 `json:"hit_rate"`
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
