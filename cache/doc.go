// Package cache provides a bounded, content-addressed store for generated
// artifacts.
//
// It ships a Cache interface with a TTL+LRU bounded implementation,
// optional file fingerprints that invalidate entries when their source
// changes on disk, and an fsnotify-based watcher for event-driven
// invalidation.
package cache
