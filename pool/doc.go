// Package pool provides a bounded worker pool with adaptive dispatch for
// artifact-generation tasks.
//
// # Dispatch
//
// Small payloads execute inline on the caller, skipping dispatch overhead.
// Larger payloads go to a pooled worker when capacity allows; when the pool
// is saturated the task also runs inline rather than queueing, trading
// throughput for bounded latency.
//
// Workers are spawned on demand, never at startup. A worker whose task
// times out is discarded instead of being returned to the idle pool, so a
// stuck handler can never poison later tasks.
//
// # Usage
//
//	p := pool.New(pool.Config{MaxConcurrentTasks: 4})
//	defer p.Close()
//
//	p.RegisterTask("render", func(ctx context.Context, payload any) (any, error) {
//	    return render(payload)
//	})
//
//	out, err := p.Execute(ctx, pool.Task{Kind: "render", Payload: doc})
package pool
