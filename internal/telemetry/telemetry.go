// Package telemetry wires OpenTelemetry tracing and a Prometheus-backed
// meter for the proxy and its upstream calls.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mark-c-hall/posterpalette/internal/config"
)

const instrumentationName = "github.com/mark-c-hall/posterpalette"

type ShutdownFunc func(context.Context) error

// SetupTracing installs the global tracer provider selected by cfg.
func SetupTracing(ctx context.Context, cfg config.TelemetryConfig) (ShutdownFunc, error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TracesExporter {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		var opts []otlptracehttp.Option
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown traces exporter %q", cfg.TracesExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating %s trace exporter: %w", cfg.TracesExporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}

// Metrics owns a private Prometheus registry fed by an OpenTelemetry meter.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	requests         metric.Int64Counter
	requestDuration  metric.Float64Histogram
	upstreamRequests metric.Int64Counter
	upstreamDuration metric.Float64Histogram
}

func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("error creating prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(instrumentationName)

	m := &Metrics{registry: reg, provider: provider}
	var errs []error
	var e error

	m.requests, e = meter.Int64Counter("proxy.requests",
		metric.WithDescription("Requests handled by the proxy"))
	errs = append(errs, e)
	m.requestDuration, e = meter.Float64Histogram("proxy.request.duration",
		metric.WithDescription("Request handling time"), metric.WithUnit("s"))
	errs = append(errs, e)
	m.upstreamRequests, e = meter.Int64Counter("upstream.requests",
		metric.WithDescription("Calls made to third-party APIs"))
	errs = append(errs, e)
	m.upstreamDuration, e = meter.Float64Histogram("upstream.request.duration",
		metric.WithDescription("Third-party call latency"), metric.WithUnit("s"))
	errs = append(errs, e)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("error creating instruments: %w", err)
	}
	return m, nil
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// RecordRequest counts one handled request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) recordUpstream(ctx context.Context, upstream, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("upstream", upstream),
		attribute.String("outcome", outcome),
	)
	m.upstreamRequests.Add(ctx, 1, attrs)
	m.upstreamDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// Transport wraps base with tracing and, when m is non-nil, upstream call
// metrics labelled with upstream.
func Transport(base http.RoundTripper, upstream string, m *Metrics) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	var rt http.RoundTripper = otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return upstream + " " + r.Method
		}),
	)
	if m != nil {
		rt = &meteredTransport{next: rt, upstream: upstream, metrics: m}
	}
	return rt
}

type meteredTransport struct {
	next     http.RoundTripper
	upstream string
	metrics  *Metrics
}

func (t *meteredTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	outcome := "error"
	if err == nil {
		outcome = strconv.Itoa(resp.StatusCode)
	}
	t.metrics.recordUpstream(req.Context(), t.upstream, outcome, time.Since(start))
	return resp, err
}

// Handler traces inbound requests under operation.
func Handler(h http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(h, operation)
}
