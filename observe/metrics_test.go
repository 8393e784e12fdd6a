package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value for the data point carrying attr.
func sumFor(t *testing.T, m *metricdata.Metrics, attr attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v.Emit() == attr.Value.Emit() {
			total += dp.Value
		}
	}
	return total
}

// TestMetrics_LookupsByResult verifies lookups are counted per result.
func TestMetrics_LookupsByResult(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLookup(ctx, "thumbs", ResultMemoryHit)
	m.RecordLookup(ctx, "thumbs", ResultMemoryHit)
	m.RecordLookup(ctx, "thumbs", ResultDiskHit)
	m.RecordLookup(ctx, "thumbs", ResultMiss)

	found := findMetric(collect(t, reader), "imagecache.lookups")
	if found == nil {
		t.Fatal("imagecache.lookups metric not found")
	}
	if got := sumFor(t, found, attribute.String("result", ResultMemoryHit)); got != 2 {
		t.Errorf("expected 2 memory hits, got %d", got)
	}
	if got := sumFor(t, found, attribute.String("result", ResultMiss)); got != 1 {
		t.Errorf("expected 1 miss, got %d", got)
	}
}

// TestMetrics_TierCounters verifies writes and evictions carry the tier.
func TestMetrics_TierCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordWrite(ctx, "thumbs", TierMemory)
	m.RecordWrite(ctx, "thumbs", TierDisk)
	m.RecordEviction(ctx, "thumbs", TierDisk)
	m.RecordPersistFailure(ctx, "thumbs")

	rm := collect(t, reader)
	writes := findMetric(rm, "imagecache.writes")
	if writes == nil {
		t.Fatal("imagecache.writes metric not found")
	}
	if got := sumFor(t, writes, attribute.String("tier", TierDisk)); got != 1 {
		t.Errorf("expected 1 disk write, got %d", got)
	}

	evictions := findMetric(rm, "imagecache.evictions")
	if evictions == nil {
		t.Fatal("imagecache.evictions metric not found")
	}
	if got := sumFor(t, evictions, attribute.String("tier", TierDisk)); got != 1 {
		t.Errorf("expected 1 disk eviction, got %d", got)
	}

	failures := findMetric(rm, "imagecache.persist_failures")
	if failures == nil {
		t.Fatal("imagecache.persist_failures metric not found")
	}
	if got := sumFor(t, failures, attribute.String("namespace", "thumbs")); got != 1 {
		t.Errorf("expected 1 persist failure, got %d", got)
	}
}

// TestMetrics_DiskReadHistogram verifies read durations are recorded in ms.
func TestMetrics_DiskReadHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordDiskRead(context.Background(), "thumbs", 1500*time.Microsecond)

	found := findMetric(collect(t, reader), "imagecache.disk_read.duration_ms")
	if found == nil {
		t.Fatal("duration histogram not found")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", found.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("unexpected data points: %+v", hist.DataPoints)
	}
	if hist.DataPoints[0].Sum != 1.5 {
		t.Errorf("expected 1.5ms, got %v", hist.DataPoints[0].Sum)
	}
}

// TestNopMetrics verifies the no-op recorder accepts every call.
func TestNopMetrics(t *testing.T) {
	m := NewNopMetrics()
	ctx := context.Background()
	m.RecordLookup(ctx, "ns", ResultMiss)
	m.RecordWrite(ctx, "ns", TierMemory)
	m.RecordEviction(ctx, "ns", TierMemory)
	m.RecordPersistFailure(ctx, "ns")
	m.RecordDiskRead(ctx, "ns", time.Millisecond)
}
