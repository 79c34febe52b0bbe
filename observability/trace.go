package observability

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName is reported as service.name when TraceConfig leaves it
// empty.
const DefaultServiceName = "cortex"

// TraceConfig selects the OTLP/HTTP collector spans are exported to.
// Endpoint is host:port; an empty Endpoint leaves tracing disabled.
type TraceConfig struct {
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Endpoint    string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure    bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// Enabled reports whether an exporter endpoint is configured.
func (c TraceConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Merge applies non-zero values from source into c.
func (c *TraceConfig) Merge(source *TraceConfig) {
	if source.ServiceName != "" {
		c.ServiceName = source.ServiceName
	}
	if source.Endpoint != "" {
		c.Endpoint = source.Endpoint
	}
	if source.Insecure {
		c.Insecure = true
	}
}

// InitTracer builds a batching TracerProvider exporting to cfg.Endpoint and
// installs it as the global provider, so otel.Tracer and TraceObserver record
// real spans. Callers must Shutdown the provider to flush pending spans.
func InitTracer(ctx context.Context, cfg TraceConfig) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("tracing endpoint not configured")
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// TraceObserver records events on the active OpenTelemetry span of the
// event's context. Events emitted outside a recording span are dropped.
type TraceObserver struct{}

func (TraceObserver) OnEvent(ctx context.Context, event Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(event.Data)+2)
	attrs = append(attrs,
		attribute.String("source", event.Source),
		attribute.String("severity", event.Level.String()),
	)
	for _, k := range slices.Sorted(maps.Keys(event.Data)) {
		attrs = append(attrs, toAttribute(k, event.Data[k]))
	}

	span.AddEvent(string(event.Type), trace.WithTimestamp(event.Timestamp), trace.WithAttributes(attrs...))
}

func toAttribute(key string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case bool:
		return attribute.Bool(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float32:
		return attribute.Float64(key, float64(val))
	case float64:
		return attribute.Float64(key, val)
	case []string:
		return attribute.StringSlice(key, val)
	default:
		return attribute.String(key, fmt.Sprint(val))
	}
}
