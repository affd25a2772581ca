package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records execution metrics for operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records an operation execution with duration and error status.
	RecordExecution(ctx context.Context, meta OperationMeta, duration time.Duration, err error)

	// RecordCacheHit records a content-address cache hit for an operation.
	RecordCacheHit(ctx context.Context, meta OperationMeta)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	cacheHits    metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

// NopMetrics returns a Metrics that discards everything.
func NopMetrics() Metrics {
	return &noopMetrics{}
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"op.exec.total",
		metric.WithDescription("Total number of operation executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"op.exec.errors",
		metric.WithDescription("Total number of operation execution errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"op.cache.hits",
		metric.WithDescription("Operation results served from the content-address cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"op.exec.duration_ms",
		metric.WithDescription("Operation execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		cacheHits:    cacheHits,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) attrs(meta OperationMeta) metric.MeasurementOption {
	attrs := []attribute.KeyValue{
		attribute.String("op.name", meta.Name),
	}
	if meta.Category != "" {
		attrs = append(attrs, attribute.String("op.category", meta.Category))
	}
	return metric.WithAttributes(attrs...)
}

// RecordExecution records metrics for an operation execution.
func (m *metricsImpl) RecordExecution(ctx context.Context, meta OperationMeta, duration time.Duration, err error) {
	opt := m.attrs(meta)

	// Always increment total counter
	m.totalCount.Add(ctx, 1, opt)

	// Increment error counter on failure
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	// Record duration in milliseconds
	durationMs := float64(duration.Milliseconds())
	m.durationHist.Record(ctx, durationMs, opt)
}

// RecordCacheHit records a cache hit.
func (m *metricsImpl) RecordCacheHit(ctx context.Context, meta OperationMeta) {
	m.cacheHits.Add(ctx, 1, m.attrs(meta))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordExecution(ctx context.Context, meta OperationMeta, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordCacheHit(ctx context.Context, meta OperationMeta) {}
