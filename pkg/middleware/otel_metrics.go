package middleware

import (
	"context"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/telemetry/attrs"
	"github.com/hyp3rd/histcache/pkg/aggregate"
)

// OTelMetricsMiddleware emits OpenTelemetry metrics for service methods.
type OTelMetricsMiddleware struct {
	next  histcache.Service
	meter metric.Meter

	// instruments
	calls     metric.Int64Counter
	durations metric.Float64Histogram
	created   metric.Int64Counter
}

// NewOTelMetricsMiddleware constructs a metrics middleware using the provided meter.
func NewOTelMetricsMiddleware(next histcache.Service, meter metric.Meter) (histcache.Service, error) {
	calls, err := meter.Int64Counter("histcache.calls")
	if err != nil {
		return nil, ewrap.Wrap(err, "create counter")
	}

	durations, err := meter.Float64Histogram("histcache.duration.ms")
	if err != nil {
		return nil, ewrap.Wrap(err, "create histogram")
	}

	created, err := meter.Int64Counter("histcache.objects.created")
	if err != nil {
		return nil, ewrap.Wrap(err, "create counter")
	}

	return &OTelMetricsMiddleware{next: next, meter: meter, calls: calls, durations: durations, created: created}, nil
}

// GetOrCreate implements Service.GetOrCreate with metrics.
func (mw *OTelMetricsMiddleware) GetOrCreate(ctx context.Context, identifier, name string) (*aggregate.Aggregate, bool) {
	start := time.Now()
	before := mw.next.Count(ctx)
	agg, ok := mw.next.GetOrCreate(ctx, identifier, name)

	if ok && mw.next.Count(ctx) > before {
		mw.created.Add(ctx, 1, metric.WithAttributes(attribute.String(attrs.AttrObjectName, name)))
	}

	mw.rec(ctx, "GetOrCreate", start, attribute.String(attrs.AttrObjectName, name), attribute.Bool(attrs.AttrFound, ok))

	return agg, ok
}

// Get implements Service.Get with metrics.
func (mw *OTelMetricsMiddleware) Get(ctx context.Context, identifier, name string) (*aggregate.Aggregate, bool) {
	start := time.Now()
	agg, ok := mw.next.Get(ctx, identifier, name)
	mw.rec(ctx, "Get", start, attribute.String(attrs.AttrObjectName, name), attribute.Bool(attrs.AttrFound, ok))

	return agg, ok
}

// Count returns the number of objects.
func (mw *OTelMetricsMiddleware) Count(ctx context.Context) int { return mw.next.Count(ctx) }

// EstimateSize returns the estimated size in bytes.
func (mw *OTelMetricsMiddleware) EstimateSize() int64 { return mw.next.EstimateSize() }

// Merge implements Service.Merge with metrics.
func (mw *OTelMetricsMiddleware) Merge(ctx context.Context, other *histcache.Collection) error {
	start := time.Now()
	err := mw.next.Merge(ctx, other)

	n := 0
	if other != nil {
		n = other.Count()
	}

	mw.rec(ctx, "Merge", start, attribute.Int(attrs.AttrObjectsCount, n), attribute.Bool("error", err != nil))

	return err
}

// Snapshot implements Service.Snapshot with metrics.
func (mw *OTelMetricsMiddleware) Snapshot(ctx context.Context) (*histcache.Snapshot, error) {
	start := time.Now()
	snap, err := mw.next.Snapshot(ctx)

	n := 0
	if snap != nil {
		n = len(snap.Objects)
	}

	mw.rec(ctx, "Snapshot", start, attribute.Int(attrs.AttrObjectsCount, n))

	return snap, err
}

// GetStats returns stats.
func (mw *OTelMetricsMiddleware) GetStats() histcache.Stats { return mw.next.GetStats() }

// rec records call count and duration with attributes.
func (mw *OTelMetricsMiddleware) rec(ctx context.Context, method string, start time.Time, attributes ...attribute.KeyValue) {
	base := []attribute.KeyValue{attribute.String("method", method)}
	if len(attributes) > 0 {
		base = append(base, attributes...)
	}

	mw.calls.Add(ctx, 1, metric.WithAttributes(base...))
	mw.durations.Record(ctx, float64(time.Since(start).Microseconds())/1000, metric.WithAttributes(base...))
}
