package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/telemetry/attrs"
	"github.com/hyp3rd/histcache/pkg/aggregate"
)

// OTelTracingMiddleware wraps histcache.Service methods with OpenTelemetry spans.
type OTelTracingMiddleware struct {
	next   histcache.Service
	tracer trace.Tracer
	// static attributes applied to all spans
	commonAttrs []attribute.KeyValue
}

// OTelTracingOption allows configuring the tracing middleware.
type OTelTracingOption func(*OTelTracingMiddleware)

// WithCommonAttributes sets attributes applied to all spans.
func WithCommonAttributes(attributes ...attribute.KeyValue) OTelTracingOption {
	return func(m *OTelTracingMiddleware) { m.commonAttrs = append(m.commonAttrs, attributes...) }
}

// NewOTelTracingMiddleware creates a tracing middleware.
func NewOTelTracingMiddleware(next histcache.Service, tracer trace.Tracer, opts ...OTelTracingOption) histcache.Service {
	mw := &OTelTracingMiddleware{next: next, tracer: tracer}
	for _, o := range opts {
		o(mw)
	}

	return mw
}

// GetOrCreate implements Service.GetOrCreate with tracing.
func (mw OTelTracingMiddleware) GetOrCreate(ctx context.Context, identifier, name string) (*aggregate.Aggregate, bool) {
	ctx, span := mw.startSpan(
		ctx, "histcache.GetOrCreate",
		attribute.String(attrs.AttrIdentifier, identifier),
		attribute.String(attrs.AttrObjectName, name))
	defer span.End()

	agg, ok := mw.next.GetOrCreate(ctx, identifier, name)
	span.SetAttributes(attribute.Bool(attrs.AttrFound, ok))

	if ok {
		span.SetAttributes(attribute.String(attrs.AttrObjectKind, agg.Kind().String()))
	}

	return agg, ok
}

// Get implements Service.Get with tracing.
func (mw OTelTracingMiddleware) Get(ctx context.Context, identifier, name string) (*aggregate.Aggregate, bool) {
	ctx, span := mw.startSpan(
		ctx, "histcache.Get",
		attribute.String(attrs.AttrIdentifier, identifier),
		attribute.String(attrs.AttrObjectName, name))
	defer span.End()

	agg, ok := mw.next.Get(ctx, identifier, name)
	span.SetAttributes(attribute.Bool(attrs.AttrFound, ok))

	return agg, ok
}

// Count returns the number of objects.
func (mw OTelTracingMiddleware) Count(ctx context.Context) int { return mw.next.Count(ctx) }

// EstimateSize returns the estimated size in bytes.
func (mw OTelTracingMiddleware) EstimateSize() int64 { return mw.next.EstimateSize() }

// Merge implements Service.Merge with tracing.
func (mw OTelTracingMiddleware) Merge(ctx context.Context, other *histcache.Collection) error {
	ctx, span := mw.startSpan(ctx, "histcache.Merge")
	defer span.End()

	if other != nil {
		span.SetAttributes(
			attribute.Int(attrs.AttrObjectsCount, other.Count()),
			attribute.Int(attrs.AttrLineageCount, len(other.Lineage())))
	}

	err := mw.next.Merge(ctx, other)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// Snapshot implements Service.Snapshot with tracing.
func (mw OTelTracingMiddleware) Snapshot(ctx context.Context) (*histcache.Snapshot, error) {
	ctx, span := mw.startSpan(ctx, "histcache.Snapshot")
	defer span.End()

	snap, err := mw.next.Snapshot(ctx)
	if err != nil {
		span.RecordError(err)

		return snap, err
	}

	span.SetAttributes(attribute.Int(attrs.AttrObjectsCount, len(snap.Objects)))

	return snap, nil
}

// GetStats returns stats.
func (mw OTelTracingMiddleware) GetStats() histcache.Stats { return mw.next.GetStats() }

// startSpan starts a span with common and provided attributes.
func (mw OTelTracingMiddleware) startSpan(ctx context.Context, name string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := mw.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	if len(mw.commonAttrs) > 0 {
		span.SetAttributes(mw.commonAttrs...)
	}

	if len(attributes) > 0 {
		span.SetAttributes(attributes...)
	}

	return ctx, span
}
