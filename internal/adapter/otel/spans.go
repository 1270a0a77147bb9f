package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "siteforge"

// StartResolveSpan starts a span for one host+path resolution.
func StartResolveSpan(ctx context.Context, host, path string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "site.resolve",
		trace.WithAttributes(
			attribute.String("site.host", host),
			attribute.String("site.path", path),
		),
	)
}

// StartLoadSpan starts a span for a repository load on behalf of a tenant.
func StartLoadSpan(ctx context.Context, op, tenantID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "site.load."+op,
		trace.WithAttributes(attribute.String("tenant.id", tenantID)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
