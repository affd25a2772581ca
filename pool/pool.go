package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"
)

// Config configures the pool.
type Config struct {
	// MaxConcurrentTasks is the pooled-worker capacity.
	// Default: max(2, NumCPU-1)
	MaxConcurrentTasks int

	// SmallTaskThreshold is the payload size in bytes below which tasks
	// execute inline on the caller.
	// Default: 1024
	SmallTaskThreshold int

	// DefaultTimeout applies when Task.Timeout is zero.
	// Default: 30 seconds
	DefaultTimeout time.Duration
}

// DefaultMaxConcurrent returns the default pooled-worker capacity.
func DefaultMaxConcurrent() int {
	n := runtime.NumCPU() - 1
	if n < 2 {
		n = 2
	}
	return n
}

// Pool executes registered task kinds with adaptive dispatch.
type Pool struct {
	config Config
	sem    *semaphore.Weighted

	mu     sync.Mutex
	tasks  map[string]TaskFunc
	idle   []*worker
	active int
	closed bool

	stats poolCounters
}

type poolCounters struct {
	inline    uint64
	pooled    uint64
	saturated uint64 // inline executions forced by a full pool
	completed uint64
	failed    uint64
	timedOut  uint64
	discarded uint64 // workers abandoned after a timeout
}

// Snapshot is a point-in-time view of pool state, in the shape consumed by
// GetMetrics.
type Snapshot struct {
	ActiveWorkers      int    `json:"active_workers"`
	IdleWorkers        int    `json:"idle_workers"`
	MaxConcurrentTasks int    `json:"max_concurrent_tasks"`
	InlineExecutions   uint64 `json:"inline_executions"`
	PooledExecutions   uint64 `json:"pooled_executions"`
	SaturatedInline    uint64 `json:"saturated_inline"`
	Completed          uint64 `json:"completed"`
	Failed             uint64 `json:"failed"`
	TimedOut           uint64 `json:"timed_out"`
	DiscardedWorkers   uint64 `json:"discarded_workers"`
}

// New creates a pool with the given configuration. No workers are spawned
// until the first pooled dispatch.
func New(config Config) *Pool {
	// Apply defaults
	if config.MaxConcurrentTasks <= 0 {
		config.MaxConcurrentTasks = DefaultMaxConcurrent()
	}
	if config.SmallTaskThreshold <= 0 {
		config.SmallTaskThreshold = 1024
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 30 * time.Second
	}

	return &Pool{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrentTasks)),
		tasks:  make(map[string]TaskFunc),
	}
}

// RegisterTask binds a handler to a task kind. Kinds are registered once;
// re-registration is an error.
func (p *Pool) RegisterTask(kind string, fn TaskFunc) error {
	if kind == "" || fn == nil {
		return ErrInvalidTask
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.tasks[kind]; ok {
		return fmt.Errorf("%w: %s", ErrTaskRegistered, kind)
	}
	p.tasks[kind] = fn
	return nil
}

// Execute runs a task to completion, inline or on a pooled worker.
//
// The task starts Queued, moves to Dispatched when it begins executing, and
// ends Completed, Failed, or TimedOut. On timeout the executing worker is
// discarded and the caller receives ErrTaskTimeout.
func (p *Pool) Execute(ctx context.Context, task Task) (any, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	fn, ok := p.tasks[task.Kind]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskKind, task.Kind)
	}

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = p.config.DefaultTimeout
	}

	size := task.Size
	if size <= 0 {
		size = estimateSize(task.Payload, p.config.SmallTaskThreshold)
	}

	if size < p.config.SmallTaskThreshold {
		p.count(func(c *poolCounters) { c.inline++ })
		return p.runInline(ctx, fn, task.Payload, timeout)
	}

	// Large task: pooled if capacity allows, inline when saturated.
	if !p.sem.TryAcquire(1) {
		p.count(func(c *poolCounters) { c.inline++; c.saturated++ })
		return p.runInline(ctx, fn, task.Payload, timeout)
	}

	p.count(func(c *poolCounters) { c.pooled++ })
	return p.runPooled(ctx, fn, task.Payload, timeout)
}

// runInline executes on the caller's goroutine path with a deadline. The
// handler itself runs on a scratch goroutine so a stuck handler cannot hold
// the caller past the deadline; pool counters are untouched.
func (p *Pool) runInline(ctx context.Context, fn TaskFunc, payload any, timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan taskResult, 1)
	go func() {
		done <- runTask(ctx, fn, payload)
	}()

	select {
	case res := <-done:
		p.recordOutcome(res.err)
		return res.out, res.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			p.count(func(c *poolCounters) { c.timedOut++ })
			return nil, ErrTaskTimeout
		}
		return nil, ctx.Err()
	}
}

// runPooled executes on an idle or freshly spawned worker. The semaphore
// slot is released on every path, so the active count always returns to its
// pre-dispatch value.
func (p *Pool) runPooled(ctx context.Context, fn TaskFunc, payload any, timeout time.Duration) (any, error) {
	w := p.takeWorker()

	p.mu.Lock()
	p.active++
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		p.sem.Release(1)
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := make(chan taskResult, 1)
	w.jobs <- job{ctx: ctx, fn: fn, payload: payload, result: res}

	select {
	case r := <-res:
		p.recordOutcome(r.err)
		p.returnWorker(w)
		return r.out, r.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			// The worker may be stuck in the handler; discard it rather
			// than reuse it.
			p.discardWorker(w)
			p.count(func(c *poolCounters) { c.timedOut++ })
			return nil, ErrTaskTimeout
		}
		p.discardWorker(w)
		return nil, ctx.Err()
	}
}

func (p *Pool) recordOutcome(err error) {
	if err != nil {
		p.count(func(c *poolCounters) { c.failed++ })
	} else {
		p.count(func(c *poolCounters) { c.completed++ })
	}
}

// Snapshot returns current pool state.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Snapshot{
		ActiveWorkers:      p.active,
		IdleWorkers:        len(p.idle),
		MaxConcurrentTasks: p.config.MaxConcurrentTasks,
		InlineExecutions:   p.stats.inline,
		PooledExecutions:   p.stats.pooled,
		SaturatedInline:    p.stats.saturated,
		Completed:          p.stats.completed,
		Failed:             p.stats.failed,
		TimedOut:           p.stats.timedOut,
		DiscardedWorkers:   p.stats.discarded,
	}
}

// Close stops all idle workers and rejects further Execute calls.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for _, w := range p.idle {
		close(w.jobs)
	}
	p.idle = nil
}

func (p *Pool) count(f func(*poolCounters)) {
	p.mu.Lock()
	f(&p.stats)
	p.mu.Unlock()
}

// worker is a single reusable execution unit.
type worker struct {
	id   string
	jobs chan job
}

type job struct {
	ctx     context.Context
	fn      TaskFunc
	payload any
	result  chan taskResult
}

type taskResult struct {
	out any
	err error
}

func (w *worker) run() {
	for j := range w.jobs {
		// result is buffered; an abandoned job never blocks the worker.
		j.result <- runTask(j.ctx, j.fn, j.payload)
	}
}

// takeWorker reuses an idle worker or spawns a new one.
func (p *Pool) takeWorker() *worker {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		w := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return w
	}
	p.mu.Unlock()

	w := &worker{
		id:   uuid.New().String(),
		jobs: make(chan job),
	}
	go w.run()
	return w
}

func (p *Pool) returnWorker(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		close(w.jobs)
		return
	}
	p.idle = append(p.idle, w)
}

// discardWorker lets the worker goroutine drain its abandoned job and exit.
func (p *Pool) discardWorker(w *worker) {
	close(w.jobs)
	p.count(func(c *poolCounters) { c.discarded++ })
}

// runTask invokes the handler with panic containment: a panicking handler
// reports ErrTaskPanic instead of tearing down the process.
func runTask(ctx context.Context, fn TaskFunc, payload any) taskResult {
	var res taskResult
	recovered := panics.Try(func() {
		res.out, res.err = fn(ctx, payload)
	})
	if recovered != nil {
		return taskResult{err: fmt.Errorf("%w: %v", ErrTaskPanic, recovered.Value)}
	}
	return res
}
