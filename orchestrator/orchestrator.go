package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/jonwraymond/artifactops/cache"
	"github.com/jonwraymond/artifactops/hashing"
	"github.com/jonwraymond/artifactops/observe"
	"github.com/jonwraymond/artifactops/pool"
	"github.com/jonwraymond/artifactops/telemetry"
)

// HandlerFunc executes one operation. Handlers must be pure: the same
// input must yield the same result by content hash, so results are safe
// to cache and to verify.
type HandlerFunc func(ctx context.Context, input any) (any, error)

// Result is the structured outcome of one Execute call. Handler faults
// surface as Success=false with Error set; Execute itself never panics.
type Result struct {
	Success         bool    `json:"success"`
	Result          any     `json:"result,omitempty"`
	Error           string  `json:"error,omitempty"`
	OperationID     string  `json:"operation_id,omitempty"`
	Cached          bool    `json:"cached"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`

	// Idempotent is set only when verification ran for this call.
	Idempotent *bool `json:"idempotent,omitempty"`

	// PerformanceTargetsMet is set only when the operation has a
	// configured latency target and samples to evaluate.
	PerformanceTargetsMet *bool `json:"performance_targets_met,omitempty"`
}

// Metrics is the read-only view returned by GetMetrics.
type Metrics struct {
	Cache             cache.Stats                       `json:"cache"`
	Pool              pool.Snapshot                     `json:"pool"`
	Telemetry         telemetry.Counters                `json:"telemetry"`
	Targets           map[string]telemetry.TargetReport `json:"targets"`
	Memory            MemoryStats                       `json:"memory"`
	ProvenanceRecords int                               `json:"provenance_records"`
}

// MemoryStats is a point-in-time process memory snapshot, sampled on
// demand rather than by a background timer.
type MemoryStats struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
}

func readMemoryStats() MemoryStats {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return MemoryStats{
		AllocBytes:      stats.Alloc,
		TotalAllocBytes: stats.TotalAlloc,
		SysBytes:        stats.Sys,
		NumGC:           stats.NumGC,
	}
}

// MaintenanceReport summarizes one RunMaintenance pass.
type MaintenanceReport struct {
	SweptCacheEntries int `json:"swept_cache_entries"`
	DroppedDigests    int `json:"dropped_digests"`
	ProvenanceRecords int `json:"provenance_records"`
}

// Orchestrator wraps named operations with caching, dispatch,
// verification, telemetry, and provenance. Construct with New; the zero
// value is not usable.
type Orchestrator struct {
	config Config

	cache      *cache.Bounded
	pool       *pool.Pool
	recorder   *telemetry.Recorder
	middleware *observe.Middleware
	metrics    observe.Metrics
	logger     observe.Logger
	exec       observe.ExecuteFunc

	mu         sync.Mutex
	handlers   map[string]HandlerFunc
	digests    map[string]string // operationID -> last result hash
	provenance []ProvenanceRecord
	closed     bool
}

// Option customizes an Orchestrator at construction.
type Option func(*Orchestrator) error

// WithObserver wires tracing, metrics, and logging from an Observer into
// every Execute call.
func WithObserver(obs observe.Observer) Option {
	return func(o *Orchestrator) error {
		mw, err := observe.MiddlewareFromObserver(obs)
		if err != nil {
			return err
		}
		metrics, err := observe.NewMetrics(obs.Meter())
		if err != nil {
			return err
		}
		o.middleware = mw
		o.metrics = metrics
		o.logger = obs.Logger()
		return nil
	}
}

// New creates an Orchestrator. Observability defaults to noop; pass
// WithObserver to instrument executions.
func New(config Config, opts ...Option) (*Orchestrator, error) {
	config.applyDefaults()

	o := &Orchestrator{
		config: config,
		cache: cache.NewBounded(cache.BoundedConfig{
			MaxEntries: config.CacheMaxEntries,
			DefaultTTL: config.CacheTTL,
		}),
		pool: pool.New(pool.Config{
			MaxConcurrentTasks: config.MaxConcurrentTasks,
			SmallTaskThreshold: config.SmallTaskThreshold,
			DefaultTimeout:     config.DefaultTimeout,
		}),
		recorder:   telemetry.NewRecorder(telemetry.Config{Targets: config.PerformanceTargets}),
		middleware: observe.NoopMiddleware(),
		metrics:    observe.NopMetrics(),
		logger:     observe.NopLogger(),
		handlers:   make(map[string]HandlerFunc),
		digests:    make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	o.exec = o.middleware.Wrap(func(ctx context.Context, op observe.OperationMeta, input any) (any, error) {
		return o.pool.Execute(ctx, pool.Task{Kind: op.Name, Payload: input})
	})

	return o, nil
}

// RegisterHandler binds a pure handler to an operation name. Names are
// registered once; re-registration is an error.
func (o *Orchestrator) RegisterHandler(name string, fn HandlerFunc) error {
	if name == "" || fn == nil {
		return ErrInvalidHandler
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if _, ok := o.handlers[name]; ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrHandlerRegistered, name)
	}
	o.handlers[name] = fn
	o.mu.Unlock()

	return o.pool.RegisterTask(name, pool.TaskFunc(fn))
}

// Execute runs one invocation of a registered operation.
//
// Flow: compute the content address, serve from cache on a hit, otherwise
// dispatch the handler through the worker pool, verify idempotency,
// evaluate the latency target, store the result, and append a provenance
// record. Handler errors come back as Success=false, never as a panic.
func (o *Orchestrator) Execute(ctx context.Context, operation string, input any) Result {
	o.mu.Lock()
	closed := o.closed
	_, registered := o.handlers[operation]
	o.mu.Unlock()

	if closed {
		return Result{Success: false, Error: ErrClosed.Error()}
	}

	inputHash, err := hashing.Hash(input)
	if err != nil {
		res := Result{Success: false, Error: err.Error()}
		o.appendProvenance(ProvenanceRecord{
			Operation: operation,
			Success:   false,
			Error:     res.Error,
			Optimized: o.config.ContentAddressing,
		})
		return res
	}

	// Cannot fail once the input itself hashed.
	operationID, _ := hashing.HashOperation(operation, input)
	meta := observe.OperationMeta{Name: operation, ID: operationID}

	if !registered {
		res := Result{
			Success:     false,
			Error:       fmt.Sprintf("%v: %s", ErrHandlerNotFound, operation),
			OperationID: operationID,
		}
		o.appendProvenance(ProvenanceRecord{
			Operation:   operation,
			OperationID: operationID,
			InputHash:   inputHash,
			Success:     false,
			Error:       res.Error,
			Optimized:   o.config.ContentAddressing,
		})
		return res
	}

	if o.config.ContentAddressing {
		if value, ok := o.cache.Get(ctx, operationID); ok {
			o.metrics.RecordCacheHit(ctx, meta)
			resultHash, _ := hashing.Hash(value)
			o.appendProvenance(ProvenanceRecord{
				Operation:   operation,
				OperationID: operationID,
				InputHash:   inputHash,
				ResultHash:  resultHash,
				Success:     true,
				Cached:      true,
				Optimized:   true,
			})
			return Result{
				Success:     true,
				Result:      value,
				OperationID: operationID,
				Cached:      true,
			}
		}
	}

	start := time.Now()
	out, execErr := o.exec(ctx, meta, input)
	duration := time.Since(start)

	o.recorder.Record(operation, duration)
	execMs := float64(duration.Microseconds()) / 1000.0

	result := Result{
		OperationID:     operationID,
		ExecutionTimeMs: execMs,
	}
	if report, ok := o.recorder.CheckTarget(operation); ok {
		meets := report.Meets
		result.PerformanceTargetsMet = &meets
	}

	rec := ProvenanceRecord{
		Operation:       operation,
		OperationID:     operationID,
		InputHash:       inputHash,
		ExecutionTimeMs: execMs,
		Optimized:       o.config.ContentAddressing,
	}

	if execErr != nil {
		result.Success = false
		result.Error = execErr.Error()
		rec.Error = result.Error
		o.appendProvenance(rec)
		return result
	}

	result.Success = true
	result.Result = out
	rec.Success = true

	resultHash, hashErr := hashing.Hash(out)
	if hashErr == nil {
		rec.ResultHash = resultHash
		if o.config.VerifyIdempotency {
			idempotent := o.verifyIdempotency(ctx, operation, operationID, input, resultHash)
			result.Idempotent = &idempotent
		}
	}

	if o.config.ContentAddressing {
		if err := o.cache.Set(ctx, operationID, out, o.config.CacheTTL); err != nil {
			// Cache failures never surface to the caller.
			o.logger.Warn(ctx, "result cache store failed",
				observe.Field{Key: "operation", Value: operation},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	o.appendProvenance(rec)
	return result
}

// verifyIdempotency checks that a successful invocation matches what the
// same input produced before. Default mode compares stored digests; strict
// mode re-invokes the handler and compares fresh hashes. Mismatches are
// logged as warnings and reported, never failed.
func (o *Orchestrator) verifyIdempotency(ctx context.Context, operation, operationID string, input any, resultHash string) bool {
	if o.config.VerifyStrict {
		return o.verifyByReinvocation(ctx, operation, operationID, input, resultHash)
	}

	o.mu.Lock()
	prev, seen := o.digests[operationID]
	o.digests[operationID] = resultHash
	o.mu.Unlock()

	if seen && prev != resultHash {
		o.warnMismatch(ctx, operation, prev, resultHash)
		return false
	}
	return true
}

func (o *Orchestrator) verifyByReinvocation(ctx context.Context, operation, operationID string, input any, resultHash string) bool {
	o.mu.Lock()
	fn := o.handlers[operation]
	o.digests[operationID] = resultHash
	o.mu.Unlock()

	rerun, err := fn(ctx, input)
	if err != nil {
		o.warnMismatch(ctx, operation, resultHash, "handler error: "+err.Error())
		return false
	}
	rerunHash, err := hashing.Hash(rerun)
	if err != nil || rerunHash != resultHash {
		o.warnMismatch(ctx, operation, resultHash, rerunHash)
		return false
	}
	return true
}

func (o *Orchestrator) warnMismatch(ctx context.Context, operation, expected, got string) {
	o.logger.Warn(ctx, ErrVerificationMismatch.Error(),
		observe.Field{Key: "operation", Value: operation},
		observe.Field{Key: "expected_hash", Value: expected},
		observe.Field{Key: "got_hash", Value: got},
	)
}

// GetMetrics returns a read-only snapshot of telemetry, cache, pool, and
// provenance state.
func (o *Orchestrator) GetMetrics() Metrics {
	o.mu.Lock()
	records := len(o.provenance)
	o.mu.Unlock()

	return Metrics{
		Cache:             o.cache.Stats(),
		Pool:              o.pool.Snapshot(),
		Telemetry:         o.recorder.Counters(),
		Targets:           o.recorder.Report(),
		Memory:            readMemoryStats(),
		ProvenanceRecords: records,
	}
}

// RunMaintenance sweeps expired and stale cache entries and bounds the
// digest table. Invoke from an owned scheduler loop; there are no
// background timers.
func (o *Orchestrator) RunMaintenance(ctx context.Context) MaintenanceReport {
	swept := o.cache.Sweep(ctx)

	o.mu.Lock()
	dropped := 0
	if len(o.digests) > o.config.MaxProvenanceRecords {
		dropped = len(o.digests)
		o.digests = make(map[string]string)
	}
	records := len(o.provenance)
	o.mu.Unlock()

	return MaintenanceReport{
		SweptCacheEntries: swept,
		DroppedDigests:    dropped,
		ProvenanceRecords: records,
	}
}

// Close stops the worker pool and rejects further calls. Idempotent.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.pool.Close()
}
