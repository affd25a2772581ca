package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()

	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(o.Close)
	return o
}

func registerDouble(t *testing.T, o *Orchestrator) {
	t.Helper()

	err := o.RegisterHandler("double", func(ctx context.Context, input any) (any, error) {
		n, ok := input.(int)
		if !ok {
			return nil, fmt.Errorf("want int, got %T", input)
		}
		return n * 2, nil
	})
	if err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}
}

func TestExecute_CachedRepeat(t *testing.T) {
	o := newTestOrchestrator(t, DefaultConfig())
	registerDouble(t, o)
	ctx := context.Background()

	first := o.Execute(ctx, "double", 21)
	if !first.Success {
		t.Fatalf("first call failed: %s", first.Error)
	}
	if first.Result != 42 {
		t.Errorf("result = %v, want 42", first.Result)
	}
	if first.Cached {
		t.Error("first call reported cached=true")
	}
	if first.OperationID == "" {
		t.Error("missing operation id")
	}

	second := o.Execute(ctx, "double", 21)
	if !second.Success {
		t.Fatalf("second call failed: %s", second.Error)
	}
	if !second.Cached {
		t.Error("second call reported cached=false")
	}
	if second.Result != 42 {
		t.Errorf("cached result = %v, want 42", second.Result)
	}
	if second.OperationID != first.OperationID {
		t.Errorf("operation ids differ: %s vs %s", first.OperationID, second.OperationID)
	}
	if second.ExecutionTimeMs != 0 {
		t.Errorf("cached execution time = %v, want 0", second.ExecutionTimeMs)
	}

	records := o.ExportAuditTrail()
	if len(records) != 2 {
		t.Fatalf("got %d provenance records, want 2", len(records))
	}
	if records[0].Cached || !records[1].Cached {
		t.Errorf("cached flags = %v, %v; want false, true", records[0].Cached, records[1].Cached)
	}
	if records[0].ResultHash == "" || records[0].ResultHash != records[1].ResultHash {
		t.Errorf("result hashes differ: %q vs %q", records[0].ResultHash, records[1].ResultHash)
	}
	if records[1].ExecutionTimeMs != 0 {
		t.Errorf("cache-hit provenance duration = %v, want 0", records[1].ExecutionTimeMs)
	}
}

func TestExecute_HandlerError(t *testing.T) {
	o := newTestOrchestrator(t, DefaultConfig())
	err := o.RegisterHandler("broken", func(ctx context.Context, input any) (any, error) {
		return nil, errors.New("boom")
	})
	if err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	res := o.Execute(context.Background(), "broken", "payload")
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "boom") {
		t.Errorf("error = %q, want it to contain boom", res.Error)
	}

	records := o.ExportAuditTrail()
	if len(records) != 1 {
		t.Fatalf("got %d provenance records, want 1", len(records))
	}
	if records[0].Success {
		t.Error("audit entry reports success for a failed call")
	}
	if !strings.Contains(records[0].Error, "boom") {
		t.Errorf("audit error = %q", records[0].Error)
	}
}

func TestExecute_HandlerPanic(t *testing.T) {
	o := newTestOrchestrator(t, DefaultConfig())
	err := o.RegisterHandler("panicky", func(ctx context.Context, input any) (any, error) {
		panic("kaboom")
	})
	if err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	res := o.Execute(context.Background(), "panicky", "payload")
	if res.Success {
		t.Fatal("expected structured failure, not a panic")
	}
	if !strings.Contains(res.Error, "kaboom") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestExecute_UnregisteredOperation(t *testing.T) {
	o := newTestOrchestrator(t, DefaultConfig())

	res := o.Execute(context.Background(), "nope", 1)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, ErrHandlerNotFound.Error()) {
		t.Errorf("error = %q, want handler-not-found", res.Error)
	}

	records := o.ExportAuditTrail()
	if len(records) != 1 || records[0].Success {
		t.Errorf("provenance = %+v", records)
	}
}

func TestExecute_NonCanonicalizableInput(t *testing.T) {
	o := newTestOrchestrator(t, DefaultConfig())
	registerDouble(t, o)

	res := o.Execute(context.Background(), "double", func() {})
	if res.Success {
		t.Fatal("expected failure for func input")
	}
	if !strings.Contains(res.Error, "not canonicalizable") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestExecute_ContentAddressingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContentAddressing = false
	o := newTestOrchestrator(t, cfg)

	var calls atomic.Int64
	err := o.RegisterHandler("count", func(ctx context.Context, input any) (any, error) {
		calls.Add(1)
		return "constant", nil
	})
	if err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	ctx := context.Background()
	o.Execute(ctx, "count", "x")
	res := o.Execute(ctx, "count", "x")
	if res.Cached {
		t.Error("cached=true with content-addressing disabled")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("handler ran %d times, want 2", got)
	}
}

func TestExecute_IdempotencyMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContentAddressing = false // force re-execution for the same input
	o := newTestOrchestrator(t, cfg)

	var calls atomic.Int64
	err := o.RegisterHandler("drift", func(ctx context.Context, input any) (any, error) {
		return calls.Add(1), nil
	})
	if err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	ctx := context.Background()
	first := o.Execute(ctx, "drift", "same-input")
	if first.Idempotent == nil || !*first.Idempotent {
		t.Errorf("first call idempotent = %v, want true", first.Idempotent)
	}

	second := o.Execute(ctx, "drift", "same-input")
	if !second.Success {
		t.Fatalf("mismatch must stay non-fatal: %s", second.Error)
	}
	if second.Idempotent == nil || *second.Idempotent {
		t.Errorf("second call idempotent = %v, want false", second.Idempotent)
	}
}

func TestExecute_VerifyStrict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VerifyStrict = true
	o := newTestOrchestrator(t, cfg)

	var calls atomic.Int64
	err := o.RegisterHandler("nondeterministic", func(ctx context.Context, input any) (any, error) {
		return calls.Add(1), nil
	})
	if err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}
	err = o.RegisterHandler("stable", func(ctx context.Context, input any) (any, error) {
		return "same", nil
	})
	if err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	ctx := context.Background()

	res := o.Execute(ctx, "nondeterministic", "in")
	if !res.Success {
		t.Fatalf("strict mismatch must stay non-fatal: %s", res.Error)
	}
	if res.Idempotent == nil || *res.Idempotent {
		t.Errorf("idempotent = %v, want false for drifting handler", res.Idempotent)
	}

	res = o.Execute(ctx, "stable", "in")
	if res.Idempotent == nil || !*res.Idempotent {
		t.Errorf("idempotent = %v, want true for stable handler", res.Idempotent)
	}
}

func TestExecute_VerificationDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VerifyIdempotency = false
	o := newTestOrchestrator(t, cfg)
	registerDouble(t, o)

	res := o.Execute(context.Background(), "double", 5)
	if res.Idempotent != nil {
		t.Errorf("idempotent = %v, want unset", res.Idempotent)
	}
}

func TestExecute_PerformanceTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerformanceTargets = map[string]time.Duration{
		"fast": time.Second,
		"slow": time.Nanosecond,
	}
	o := newTestOrchestrator(t, cfg)

	for _, name := range []string{"fast", "slow", "untargeted"} {
		err := o.RegisterHandler(name, func(ctx context.Context, input any) (any, error) {
			time.Sleep(time.Millisecond)
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("RegisterHandler(%s): %v", name, err)
		}
	}

	ctx := context.Background()

	res := o.Execute(ctx, "fast", "x")
	if res.PerformanceTargetsMet == nil || !*res.PerformanceTargetsMet {
		t.Errorf("fast target met = %v, want true", res.PerformanceTargetsMet)
	}

	res = o.Execute(ctx, "slow", "x")
	if res.PerformanceTargetsMet == nil || *res.PerformanceTargetsMet {
		t.Errorf("slow target met = %v, want false", res.PerformanceTargetsMet)
	}

	res = o.Execute(ctx, "untargeted", "x")
	if res.PerformanceTargetsMet != nil {
		t.Errorf("untargeted result = %v, want unset", res.PerformanceTargetsMet)
	}
}

func TestExecute_SmallTasksStayInline(t *testing.T) {
	o := newTestOrchestrator(t, DefaultConfig())
	err := o.RegisterHandler("echo", func(ctx context.Context, input any) (any, error) {
		return input, nil
	})
	if err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	ctx := context.Background()
	o.Execute(ctx, "echo", "tiny payload one")
	o.Execute(ctx, "echo", "tiny payload two")

	snap := o.GetMetrics().Pool
	if snap.PooledExecutions != 0 {
		t.Errorf("pooled executions = %d, want 0 for small payloads", snap.PooledExecutions)
	}
	if snap.InlineExecutions != 2 {
		t.Errorf("inline executions = %d, want 2", snap.InlineExecutions)
	}
	if snap.ActiveWorkers != 0 || snap.IdleWorkers != 0 {
		t.Errorf("pool touched by small tasks: %+v", snap)
	}
}

func TestExecute_LargeTaskUsesPool(t *testing.T) {
	o := newTestOrchestrator(t, DefaultConfig())
	err := o.RegisterHandler("bulk", func(ctx context.Context, input any) (any, error) {
		return len(input.(string)), nil
	})
	if err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	payload := strings.Repeat("x", 4096)
	res := o.Execute(context.Background(), "bulk", payload)
	if !res.Success || res.Result != 4096 {
		t.Fatalf("result = %+v", res)
	}

	snap := o.GetMetrics().Pool
	if snap.PooledExecutions != 1 {
		t.Errorf("pooled executions = %d, want 1", snap.PooledExecutions)
	}
}

func TestExecute_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultTimeout = 50 * time.Millisecond
	o := newTestOrchestrator(t, cfg)

	release := make(chan struct{})
	err := o.RegisterHandler("stuck", func(ctx context.Context, input any) (any, error) {
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}
	defer close(release)

	res := o.Execute(context.Background(), "stuck", strings.Repeat("x", 4096))
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("error = %q", res.Error)
	}

	records := o.ExportAuditTrail()
	if len(records) != 1 || records[0].Success {
		t.Errorf("provenance = %+v", records)
	}
}

func TestRegisterHandler_Errors(t *testing.T) {
	o := newTestOrchestrator(t, DefaultConfig())

	if err := o.RegisterHandler("", func(ctx context.Context, input any) (any, error) { return nil, nil }); !errors.Is(err, ErrInvalidHandler) {
		t.Errorf("empty name error = %v", err)
	}
	if err := o.RegisterHandler("x", nil); !errors.Is(err, ErrInvalidHandler) {
		t.Errorf("nil fn error = %v", err)
	}

	registerDouble(t, o)
	err := o.RegisterHandler("double", func(ctx context.Context, input any) (any, error) { return nil, nil })
	if !errors.Is(err, ErrHandlerRegistered) {
		t.Errorf("duplicate error = %v", err)
	}
}

func TestOrchestrator_GetMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerformanceTargets = map[string]time.Duration{"double": time.Second}
	o := newTestOrchestrator(t, cfg)
	registerDouble(t, o)
	ctx := context.Background()

	o.Execute(ctx, "double", 1)
	o.Execute(ctx, "double", 1) // cache hit
	o.Execute(ctx, "double", 2)

	m := o.GetMetrics()
	if m.Cache.Hits != 1 {
		t.Errorf("cache hits = %d, want 1", m.Cache.Hits)
	}
	if m.Telemetry.Recorded != 2 {
		t.Errorf("telemetry recorded = %d, want 2", m.Telemetry.Recorded)
	}
	if m.ProvenanceRecords != 3 {
		t.Errorf("provenance records = %d, want 3", m.ProvenanceRecords)
	}
	if _, ok := m.Targets["double"]; !ok {
		t.Error("missing target report for double")
	}
	if m.Memory.SysBytes == 0 {
		t.Error("memory snapshot not sampled")
	}
}

func TestOrchestrator_ProvenanceCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxProvenanceRecords = 5
	o := newTestOrchestrator(t, cfg)
	registerDouble(t, o)

	for i := 0; i < 8; i++ {
		o.Execute(context.Background(), "double", i)
	}

	records := o.ExportAuditTrail()
	if len(records) != 5 {
		t.Fatalf("got %d records, want 5", len(records))
	}
	// The oldest three invocations must have been dropped.
	for i, rec := range records {
		if rec.ID == "" || rec.RecordedAt.IsZero() {
			t.Errorf("record %d missing id or timestamp: %+v", i, rec)
		}
	}
}

func TestOrchestrator_RunMaintenance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheTTL = 10 * time.Millisecond
	o := newTestOrchestrator(t, cfg)
	registerDouble(t, o)
	ctx := context.Background()

	o.Execute(ctx, "double", 1)
	o.Execute(ctx, "double", 2)
	time.Sleep(30 * time.Millisecond)

	report := o.RunMaintenance(ctx)
	if report.SweptCacheEntries != 2 {
		t.Errorf("swept = %d, want 2", report.SweptCacheEntries)
	}
	if report.ProvenanceRecords != 2 {
		t.Errorf("provenance records = %d, want 2", report.ProvenanceRecords)
	}
}

func TestOrchestrator_CloseRejectsCalls(t *testing.T) {
	o, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	registerDouble(t, o)

	o.Close()
	o.Close() // idempotent

	res := o.Execute(context.Background(), "double", 1)
	if res.Success || !strings.Contains(res.Error, "closed") {
		t.Errorf("result after close = %+v", res)
	}

	err = o.RegisterHandler("late", func(ctx context.Context, input any) (any, error) { return nil, nil })
	if !errors.Is(err, ErrClosed) {
		t.Errorf("register after close = %v", err)
	}
}

func TestExecute_Concurrent(t *testing.T) {
	o := newTestOrchestrator(t, DefaultConfig())
	registerDouble(t, o)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				res := o.Execute(ctx, "double", n)
				if !res.Success || res.Result != n*2 {
					t.Errorf("Execute(double, %d) = %+v", n, res)
				}
			}
		}(i)
	}
	wg.Wait()

	if got := o.GetMetrics().ProvenanceRecords; got != 160 {
		t.Errorf("provenance records = %d, want 160", got)
	}
}
