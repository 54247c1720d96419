// Package telemetry gives the kernel a single OTEL tracer handle. No
// exporter is configured here — otel.Tracer returns spans that go to the
// no-op backend until a caller wires a TracerProvider, exactly as
// go.opentelemetry.io/otel's own doc comment describes. Kept tiny on
// purpose: the kernel needs span boundaries around its transactions, not
// an opinion about where traces end up.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/hiveforge/kernel"

// Tracer is the kernel's shared tracer handle.
func Tracer() trace.Tracer { return otel.Tracer(scopeName) }

// StartSpan starts a span named name and returns ctx plus an end func that
// records err (if non-nil) before ending the span. Call sites defer the
// returned func with the named error return:
//
//	ctx, end := telemetry.StartSpan(ctx, "kernel.Append")
//	defer func() { end(err) }()
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := Tracer().Start(ctx, name)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
