package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope of every span.
const TracerName = "github.com/phobologic/methodmap"

// Tracing owns the tracer provider of a run.
type Tracing struct {
	Tracer   trace.Tracer
	shutdown func(context.Context) error
}

// SetupTracing exports spans as JSON to w. A nil w disables tracing.
func SetupTracing(w io.Writer) (*Tracing, error) {
	if w == nil {
		return &Tracing{
			Tracer:   noop.NewTracerProvider().Tracer(TracerName),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return &Tracing{Tracer: tp.Tracer(TracerName), shutdown: tp.Shutdown}, nil
}

// Shutdown flushes and stops the provider.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
