package telemetry

import (
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultBufferSize is the per-category ring buffer capacity.
const DefaultBufferSize = 1000

// Config configures a Recorder.
type Config struct {
	// BufferSize is the per-category sample capacity; the oldest sample is
	// dropped once a buffer is full.
	// Default: DefaultBufferSize
	BufferSize int

	// Targets maps a category to its latency threshold. A category meets
	// its target when p95 <= threshold.
	Targets map[string]time.Duration
}

// TargetReport is the outcome of checking one category against its target.
type TargetReport struct {
	Category  string        `json:"category"`
	P95       time.Duration `json:"p95"`
	Threshold time.Duration `json:"threshold"`
	Meets     bool          `json:"meets"`
	// Margin is threshold minus p95: positive when under target.
	Margin time.Duration `json:"margin"`
	// Samples is how many samples backed the evaluation.
	Samples int `json:"samples"`
}

// Counters is a snapshot of recording activity.
type Counters struct {
	Recorded   uint64 `json:"recorded"`
	Dropped    uint64 `json:"dropped"`
	Categories int    `json:"categories"`
}

type sample struct {
	duration time.Duration
	at       time.Time
}

// ring is a fixed-capacity sample buffer; writes past capacity overwrite
// the oldest sample.
type ring struct {
	samples []sample
	next    int
	full    bool
}

func (r *ring) add(s sample) {
	r.samples[r.next] = s
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) durations() []time.Duration {
	n := r.next
	if r.full {
		n = len(r.samples)
	}
	out := make([]time.Duration, n)
	for i := 0; i < n; i++ {
		out[i] = r.samples[i].duration
	}
	return out
}

// Recorder keeps latency samples per category.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: Record never fails the caller; internally rejected samples are
//   counted in Counters().Dropped.
type Recorder struct {
	config Config

	mu       sync.Mutex
	buffers  map[string]*ring
	recorded uint64
	dropped  uint64
}

// NewRecorder creates a Recorder with the given configuration.
func NewRecorder(config Config) *Recorder {
	// Apply defaults
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}

	return &Recorder{
		config:  config,
		buffers: make(map[string]*ring),
	}
}

// Record stores one latency sample. Samples with an empty category or a
// negative duration are dropped and counted, never reported as errors.
func (r *Recorder) Record(category string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if category == "" || d < 0 {
		r.dropped++
		return
	}

	buf, ok := r.buffers[category]
	if !ok {
		buf = &ring{samples: make([]sample, r.config.BufferSize)}
		r.buffers[category] = buf
	}
	buf.add(sample{duration: d, at: time.Now()})
	r.recorded++
}

// Percentile returns the p-th percentile (0 < p <= 100) of the current
// buffer for category. The second return is false when no samples exist.
func (r *Recorder) Percentile(category string, p float64) (time.Duration, bool) {
	r.mu.Lock()
	buf, ok := r.buffers[category]
	var durations []time.Duration
	if ok {
		durations = buf.durations()
	}
	r.mu.Unlock()

	if len(durations) == 0 {
		return 0, false
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	idx := int(math.Ceil(p/100*float64(len(durations)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(durations) {
		idx = len(durations) - 1
	}
	return durations[idx], true
}

// CheckTarget evaluates a category against its configured threshold.
// The second return is false when the category has no target or no samples.
func (r *Recorder) CheckTarget(category string) (TargetReport, bool) {
	threshold, ok := r.config.Targets[category]
	if !ok {
		return TargetReport{}, false
	}

	p95, ok := r.Percentile(category, 95)
	if !ok {
		return TargetReport{}, false
	}

	r.mu.Lock()
	samples := len(r.buffers[category].durations())
	r.mu.Unlock()

	return TargetReport{
		Category:  category,
		P95:       p95,
		Threshold: threshold,
		Meets:     p95 <= threshold,
		Margin:    threshold - p95,
		Samples:   samples,
	}, true
}

// Report evaluates every category that has a configured target.
func (r *Recorder) Report() map[string]TargetReport {
	out := make(map[string]TargetReport, len(r.config.Targets))
	for category := range r.config.Targets {
		if report, ok := r.CheckTarget(category); ok {
			out[category] = report
		}
	}
	return out
}

// Counters returns a snapshot of recording activity.
func (r *Recorder) Counters() Counters {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Counters{
		Recorded:   r.recorded,
		Dropped:    r.dropped,
		Categories: len(r.buffers),
	}
}
