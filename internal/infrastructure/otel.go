package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"marketpulse/internal/config"
)

// InstrumentationName names the tracer and meter of this module
const InstrumentationName = "marketpulse"

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *ETLMetrics

	// Registry receives every OTel metric through the Prometheus exporter.
	// It is private to the process so tests never collide on the default one.
	Registry *prom.Registry

	logger *slog.Logger
}

// InitializeOTel sets up tracing and metrics from the telemetry config
func InitializeOTel(ctx context.Context, cfg config.TelemetryConfig, version string, logger *slog.Logger) (*OTelProviders, error) {
	res, err := createResource(cfg.ServiceName, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Registry: prom.NewRegistry(),
		logger:   logger,
	}

	if err := providers.initializeTracing(cfg, res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := providers.initializeMetrics(cfg, res, version); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(serviceName, version string) (*resource.Resource, error) {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
		semconv.DeploymentEnvironmentName(env),
	), nil
}

func (p *OTelProviders) initializeTracing(cfg config.TelemetryConfig, res *resource.Resource) error {
	switch cfg.TraceExporter {
	case "", "none":
		p.Tracer = tracenoop.NewTracerProvider().Tracer(InstrumentationName)
		return nil
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		p.TracerProvider = tp
		p.Tracer = tp.Tracer(InstrumentationName)
		otel.SetTracerProvider(tp)
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
}

func (p *OTelProviders) initializeMetrics(cfg config.TelemetryConfig, res *resource.Resource, version string) error {
	if cfg.MetricsEnabled {
		exporter, err := otelprom.New(otelprom.WithRegisterer(p.Registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		p.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		p.Meter = p.MeterProvider.Meter(InstrumentationName, metric.WithInstrumentationVersion(version))
	} else {
		p.Meter = metricnoop.NewMeterProvider().Meter(InstrumentationName)
	}

	metrics, err := CreateETLMetrics(p.Meter)
	if err != nil {
		return err
	}
	p.Metrics = metrics
	return nil
}

// MetricsHandler serves the private registry in the Prometheus text format
func (p *OTelProviders) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{Registry: p.Registry})
}

// PushMetrics sends the registry to a Prometheus Pushgateway. One-shot runs
// exit before any scraper could reach them.
func (p *OTelProviders) PushMetrics(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(p.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ETLMetrics holds the instruments recorded by a run
type ETLMetrics struct {
	RunsTotal     metric.Int64Counter
	RunDuration   metric.Float64Histogram
	StageDuration metric.Float64Histogram
	Events        metric.Int64Counter
	RowsWritten   metric.Int64Counter
}

// CreateETLMetrics registers the run instruments on meter
func CreateETLMetrics(meter metric.Meter) (*ETLMetrics, error) {
	runsTotal, err := meter.Int64Counter(
		"etl.runs",
		metric.WithDescription("Completed ETL runs by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram(
		"etl.run.duration",
		metric.WithDescription("Wall time of a full ETL run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	stageDuration, err := meter.Float64Histogram(
		"etl.stage.duration",
		metric.WithDescription("Wall time of a single pipeline stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage duration histogram: %w", err)
	}

	events, err := meter.Int64Counter(
		"etl.events",
		metric.WithDescription("Reported pipeline events such as ticker_failed or row_dropped"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create events counter: %w", err)
	}

	rowsWritten, err := meter.Int64Counter(
		"etl.rows.written",
		metric.WithDescription("Rows written to a destination table"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rows counter: %w", err)
	}

	return &ETLMetrics{
		RunsTotal:     runsTotal,
		RunDuration:   runDuration,
		StageDuration: stageDuration,
		Events:        events,
		RowsWritten:   rowsWritten,
	}, nil
}

// RecordRun records the outcome of a run
func (m *ETLMetrics) RecordRun(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordStage records the duration of one stage
func (m *ETLMetrics) RecordStage(ctx context.Context, stage string, success bool, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("success", success),
	))
}

// RecordRows counts rows written to one table of one target
func (m *ETLMetrics) RecordRows(ctx context.Context, target, table string, rows int) {
	m.RowsWritten.Add(ctx, int64(rows), metric.WithAttributes(
		attribute.String("target", target),
		attribute.String("table", table),
	))
}

// RecordSpanError marks the span in ctx as failed
func RecordSpanError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
