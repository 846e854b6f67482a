package mcpconn

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/shaharia-lab/mcpconn"

// StartSpan starts a new span with the given name and options.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return trace.SpanFromContext(ctx).TracerProvider().
		Tracer(tracerName).
		Start(ctx, name, opts...)
}

// startSpan opens a span for an operation on this connection, preferring the
// configured tracer over the ambient one.
func (c *Connection) startSpan(ctx context.Context, name, method string) (context.Context, trace.Span) {
	var span trace.Span
	if c.config.Tracer != nil {
		ctx, span = c.config.Tracer.Start(ctx, name)
	} else {
		ctx, span = StartSpan(ctx, name)
	}
	span.SetAttributes(
		attribute.String("mcp.server_id", c.config.ServerID),
		attribute.String("mcp.method", method),
	)
	return ctx, span
}

func recordSpanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
