// Package observability provides OpenTelemetry tracing for sfbridge
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/sfbridge"

var (
	tracerMu sync.RWMutex
	tracer   trace.Tracer = otel.Tracer(instrumentationName)
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	ServiceName    string        `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string        `mapstructure:"-" yaml:"-"`
	Environment    string        `mapstructure:"environment" yaml:"environment"`
	SamplingRate   float64       `mapstructure:"sampling_rate" yaml:"sampling_rate" validate:"gte=0,lte=1"`
	PrettyPrint    bool          `mapstructure:"pretty_print" yaml:"pretty_print"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`

	// Writer receives exported spans; stdout when nil
	Writer io.Writer `mapstructure:"-" yaml:"-"`
}

// ShutdownFunc flushes and stops the tracer provider
type ShutdownFunc func(context.Context) error

// InitTracing installs a global tracer provider exporting to stdout.
// When tracing is disabled the no-op provider stays in place.
func InitTracing(config TracingConfig) (ShutdownFunc, error) {
	if !config.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(writer)}
	if config.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	batchTimeout := config.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(config.SamplingRate)),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// SetTracerProvider points the package tracer at tp
func SetTracerProvider(tp trace.TracerProvider) {
	tracerMu.Lock()
	tracer = tp.Tracer(instrumentationName)
	tracerMu.Unlock()
}

// StartSpan opens a span named operation carrying attrs
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracerMu.RLock()
	t := tracer
	tracerMu.RUnlock()
	return t.Start(ctx, operation, trace.WithAttributes(attrs...))
}

// EndSpan records err on the span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
