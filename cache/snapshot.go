package cache

import (
	"context"
	"time"
)

// EntrySnapshot is a value-typed view of one cache entry, re-hydratable
// without external references. Fingerprints are intentionally excluded: a
// restored process must re-stat sources it cares about.
type EntrySnapshot struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Export returns a snapshot of all live entries, most recently accessed
// first. Expired entries are skipped.
func (c *Bounded) Export() []EntrySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	out := make([]EntrySnapshot, 0, c.lru.Len())
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry)
		if now.After(e.expiresAt) {
			continue
		}
		out = append(out, EntrySnapshot{
			Key:       e.key,
			Value:     e.value,
			CreatedAt: e.createdAt,
			ExpiresAt: e.expiresAt,
		})
	}
	return out
}

// Import re-hydrates entries from a snapshot and returns how many were
// restored. Already-expired and invalid-key entries are skipped; restored
// entries keep their original expiry.
func (c *Bounded) Import(ctx context.Context, snapshots []EntrySnapshot) int {
	now := time.Now()
	restored := 0
	for _, s := range snapshots {
		if !s.ExpiresAt.After(now) {
			continue
		}
		if err := c.Set(ctx, s.Key, s.Value, s.ExpiresAt.Sub(now)); err != nil {
			continue
		}

		// Set stamps fresh times; restore the snapshot's bookkeeping so
		// eviction order survives a round trip.
		c.mu.Lock()
		if elem, ok := c.entries[s.Key]; ok {
			e := elem.Value.(*entry)
			e.createdAt = s.CreatedAt
			e.expiresAt = s.ExpiresAt
		}
		c.mu.Unlock()
		restored++
	}
	return restored
}
