package tracing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName = "storarr"
	tracerName  = "github.com/amaumene/storarr"
)

// Setup installs a global tracer provider that reports finished spans to the
// logger at debug level. The returned function flushes and stops the provider.
func Setup(logger zerolog.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", ServiceName),
		)),
		sdktrace.WithSpanProcessor(&logProcessor{logger: logger.With().Str("component", "tracing").Logger()}),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// StartSpan starts a span on the global provider
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetSpanError records err on the span and marks it failed
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// MediaItemAttrs returns the common attributes for operations on one media item
func MediaItemAttrs(id uint, title, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("media.id", int64(id)),
		attribute.String("media.title", title),
		attribute.String("media.state", state),
	}
}

type logProcessor struct {
	logger zerolog.Logger
}

func (p *logProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	event := p.logger.Debug()
	if s.Status().Code == codes.Error {
		event = p.logger.Warn().Str("error", s.Status().Description)
	}
	event.
		Str("span", s.Name()).
		Str("trace_id", s.SpanContext().TraceID().String()).
		Dur("duration", s.EndTime().Sub(s.StartTime())).
		Time("started", s.StartTime().Truncate(time.Millisecond)).
		Msg("Span finished")
}

func (p *logProcessor) Shutdown(context.Context) error   { return nil }
func (p *logProcessor) ForceFlush(context.Context) error { return nil }
