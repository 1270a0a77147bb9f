package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "siteforge"

// Metrics holds the instruments of the page resolution pipeline.
type Metrics struct {
	PagesResolved   metric.Int64Counter
	PagesNotFound   metric.Int64Counter
	StorageErrors   metric.Int64Counter
	UnknownBlocks   metric.Int64Counter
	MalformedBlocks metric.Int64Counter
	CacheHits       metric.Int64Counter
	CacheMisses     metric.Int64Counter
	BreakerChanges  metric.Int64Counter
	ResolveDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.GetMeterProvider())
}

// NewMetricsFrom creates all metric instruments on mp.
func NewMetricsFrom(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.PagesResolved, "siteforge.pages.resolved", "Pages resolved successfully"},
		{&m.PagesNotFound, "siteforge.pages.not_found", "Requests answered with not found"},
		{&m.StorageErrors, "siteforge.storage.errors", "Requests failed by storage errors"},
		{&m.UnknownBlocks, "siteforge.blocks.unknown", "Blocks dropped for an unknown type"},
		{&m.MalformedBlocks, "siteforge.blocks.malformed", "Malformed block data absorbed"},
		{&m.CacheHits, "siteforge.cache.hits", "Site cache hits"},
		{&m.CacheMisses, "siteforge.cache.misses", "Site cache misses"},
		{&m.BreakerChanges, "siteforge.storage.breaker.transitions", "Storage circuit breaker state changes"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.ResolveDuration, err = meter.Float64Histogram("siteforge.resolve.duration_seconds",
		metric.WithDescription("Page resolution duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordResolve records the outcome of one resolution. outcome is one of
// "ok", "not_found" or "error".
func (m *Metrics) RecordResolve(ctx context.Context, outcome, route string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("route", route))
	switch outcome {
	case "ok":
		m.PagesResolved.Add(ctx, 1, attrs)
	case "not_found":
		m.PagesNotFound.Add(ctx, 1, attrs)
	default:
		m.StorageErrors.Add(ctx, 1, attrs)
	}
	m.ResolveDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("route", route), attribute.String("outcome", outcome)))
}

// RecordBlockDiagnostic counts one unknown or malformed block.
func (m *Metrics) RecordBlockDiagnostic(ctx context.Context, unknown bool, blockType string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("block.type", blockType))
	if unknown {
		m.UnknownBlocks.Add(ctx, 1, attrs)
		return
	}
	m.MalformedBlocks.Add(ctx, 1, attrs)
}

// RecordCache counts a cache lookup for the given entry kind.
func (m *Metrics) RecordCache(ctx context.Context, kind string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("entry", kind))
	if hit {
		m.CacheHits.Add(ctx, 1, attrs)
		return
	}
	m.CacheMisses.Add(ctx, 1, attrs)
}

// RecordBreaker counts a storage breaker transition into state to.
func (m *Metrics) RecordBreaker(ctx context.Context, to string) {
	if m == nil {
		return
	}
	m.BreakerChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("state", to)))
}
