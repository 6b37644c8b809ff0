// Package telemetry wires OpenTelemetry tracing. Spans are written as JSON
// lines to a file when tracing is enabled; otherwise the global no-op
// provider is left in place.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/v0xg/webscenario"

// Provider owns the SDK tracer provider and its output.
type Provider struct {
	provider *sdktrace.TracerProvider
	out      io.Closer
}

// Setup installs a global tracer provider that writes spans to path.
func Setup(path, version string) (*Provider, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace output: %w", err)
	}
	p, err := NewProvider(f, version)
	if err != nil {
		f.Close()
		return nil, err
	}
	p.out = f
	return p, nil
}

// NewProvider installs a global tracer provider that writes spans to w.
func NewProvider(w io.Writer, version string) (*Provider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("webscenario"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return &Provider{provider: provider}, nil
}

// Shutdown flushes pending spans and closes the output.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	err := p.provider.Shutdown(ctx)
	if p.out != nil {
		if cerr := p.out.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Tracer returns the harness tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span with the given name
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Attribute keys used on harness spans.
var (
	AttrSuite     = attribute.Key("webscenario.suite")
	AttrScenario  = attribute.Key("webscenario.scenario")
	AttrAttempt   = attribute.Key("webscenario.attempt")
	AttrState     = attribute.Key("webscenario.state")
	AttrStepKind  = attribute.Key("webscenario.step.kind")
	AttrStepIndex = attribute.Key("webscenario.step.index")
	AttrSelector  = attribute.Key("webscenario.selector")
	AttrSessionID = attribute.Key("webscenario.session.id")
)
