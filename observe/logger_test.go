package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func decodeLogLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)
	ctx := context.Background()

	l.Info(ctx, "operation cached", Field{Key: "operation_id", Value: "abc123"})

	entries := decodeLogLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["msg"] != "operation cached" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["operation_id"] != "abc123" {
		t.Errorf("operation_id = %v", entry["operation_id"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	l.Debug(ctx, "dropped")
	l.Info(ctx, "dropped")
	l.Warn(ctx, "kept")
	l.Error(ctx, "kept")

	entries := decodeLogLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("unexpected levels: %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)
	ctx := context.Background()

	l.Info(ctx, "executing",
		Field{Key: "input", Value: map[string]any{"password": "hunter2"}},
		Field{Key: "token", Value: "secret-token"},
		Field{Key: "node_count", Value: 42},
	)

	entries := decodeLogLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if entry["input"] != "[REDACTED]" {
		t.Errorf("input = %v, want [REDACTED]", entry["input"])
	}
	if entry["token"] != "[REDACTED]" {
		t.Errorf("token = %v, want [REDACTED]", entry["token"])
	}
	if entry["node_count"] != float64(42) {
		t.Errorf("node_count = %v, want 42", entry["node_count"])
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Error("redacted value leaked into log output")
	}
}

func TestLogger_WithOperation(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)
	ctx := context.Background()

	opLogger := l.WithOperation(OperationMeta{
		Name:     "generate-docs",
		Category: "template-render",
		ID:       "deadbeef",
	})
	opLogger.Info(ctx, "done")

	// The parent logger must not carry the operation context.
	l.Info(ctx, "plain")

	entries := decodeLogLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	withOp := entries[0]
	if withOp["op.name"] != "generate-docs" {
		t.Errorf("op.name = %v", withOp["op.name"])
	}
	if withOp["op.category"] != "template-render" {
		t.Errorf("op.category = %v", withOp["op.category"])
	}
	if withOp["op.id"] != "deadbeef" {
		t.Errorf("op.id = %v", withOp["op.id"])
	}

	plain := entries[1]
	if _, ok := plain["op.name"]; ok {
		t.Error("parent logger leaked operation context")
	}
}

func TestLogger_WithOperationOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)

	l.WithOperation(OperationMeta{Name: "hash"}).Info(context.Background(), "ok")

	entries := decodeLogLines(t, &buf)
	entry := entries[0]
	if _, ok := entry["op.category"]; ok {
		t.Error("empty category should be omitted")
	}
	if _, ok := entry["op.id"]; ok {
		t.Error("empty id should be omitted")
	}
}

func TestLogger_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				l.Info(ctx, "concurrent write")
			}
		}()
	}
	wg.Wait()

	entries := decodeLogLines(t, &buf)
	if len(entries) != 400 {
		t.Fatalf("got %d entries, want 400", len(entries))
	}
}
