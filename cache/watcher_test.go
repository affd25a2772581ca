package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_InvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "template.tmpl")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	c := NewBounded(BoundedConfig{})
	ctx := context.Background()

	if err := c.Set(ctx, "tmpl", "rendered-v1", time.Minute, c.WithSourceFile(path)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	w, err := NewWatcher(c)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := w.WatchFingerprinted(); err != nil {
		t.Fatalf("WatchFingerprinted failed: %v", err)
	}
	w.Start()

	if err := os.WriteFile(path, []byte("v2 changed"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Len() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if c.Len() != 0 {
		t.Error("entry should have been invalidated after source write")
	}
	if w.Invalidated() == 0 {
		t.Error("Invalidated counter should have advanced")
	}
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	c := NewBounded(BoundedConfig{})
	w, err := NewWatcher(c)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.Start()

	if err := w.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := w.Watch("/tmp"); err != ErrWatchClosed {
		t.Errorf("Watch after Close = %v, want ErrWatchClosed", err)
	}
}

func TestWatcher_NilCache(t *testing.T) {
	if _, err := NewWatcher(nil); err != ErrNilCache {
		t.Errorf("NewWatcher(nil) err = %v, want ErrNilCache", err)
	}
}
