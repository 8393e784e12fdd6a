package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup results recorded by Metrics.RecordLookup.
const (
	ResultMemoryHit = "memory_hit"
	ResultDiskHit   = "disk_hit"
	ResultMiss      = "miss"
)

// Tier names recorded by Metrics.
const (
	TierMemory = "memory"
	TierDisk   = "disk"
)

// Metrics records cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records the outcome of one lookup.
	RecordLookup(ctx context.Context, namespace, result string)

	// RecordWrite records an entry written to a tier.
	RecordWrite(ctx context.Context, namespace, tier string)

	// RecordEviction records a space-pressure eviction from a tier.
	RecordEviction(ctx context.Context, namespace, tier string)

	// RecordPersistFailure records a failed disk write.
	RecordPersistFailure(ctx context.Context, namespace string)

	// RecordDiskRead records the duration of a disk read and decode.
	RecordDiskRead(ctx context.Context, namespace string, duration time.Duration)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	lookups         metric.Int64Counter
	writes          metric.Int64Counter
	evictions       metric.Int64Counter
	persistFailures metric.Int64Counter
	diskReadHist    metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookups, err := meter.Int64Counter(
		"imagecache.lookups",
		metric.WithDescription("Total number of cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	writes, err := meter.Int64Counter(
		"imagecache.writes",
		metric.WithDescription("Total number of entries written by tier"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"imagecache.evictions",
		metric.WithDescription("Total number of space-pressure evictions by tier"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	persistFailures, err := meter.Int64Counter(
		"imagecache.persist_failures",
		metric.WithDescription("Total number of failed disk writes"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	diskReadHist, err := meter.Float64Histogram(
		"imagecache.disk_read.duration_ms",
		metric.WithDescription("Disk read and decode duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:         lookups,
		writes:          writes,
		evictions:       evictions,
		persistFailures: persistFailures,
		diskReadHist:    diskReadHist,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, namespace, result string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", namespace),
		attribute.String("result", result),
	))
}

func (m *metricsImpl) RecordWrite(ctx context.Context, namespace, tier string) {
	m.writes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", namespace),
		attribute.String("tier", tier),
	))
}

func (m *metricsImpl) RecordEviction(ctx context.Context, namespace, tier string) {
	m.evictions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", namespace),
		attribute.String("tier", tier),
	))
}

func (m *metricsImpl) RecordPersistFailure(ctx context.Context, namespace string) {
	m.persistFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", namespace),
	))
}

func (m *metricsImpl) RecordDiskRead(ctx context.Context, namespace string, duration time.Duration) {
	m.diskReadHist.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(
		attribute.String("namespace", namespace),
	))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NewNopMetrics returns a Metrics that records nothing.
func NewNopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordLookup(ctx context.Context, namespace, result string) {}
func (noopMetrics) RecordWrite(ctx context.Context, namespace, tier string)    {}
func (noopMetrics) RecordEviction(ctx context.Context, namespace, tier string) {}
func (noopMetrics) RecordPersistFailure(ctx context.Context, namespace string) {}
func (noopMetrics) RecordDiskRead(context.Context, string, time.Duration)      {}
