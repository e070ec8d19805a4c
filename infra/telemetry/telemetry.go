// Package telemetry sets up the trace and log providers behind otel and the
// slog bridge.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/webitel/user-admin-client/config"
)

// Providers owns the SDK providers for the lifetime of the app.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Logger *sdklog.LoggerProvider
}

type options struct {
	spanExporter sdktrace.SpanExporter
	logExporter  sdklog.Exporter
	sync         bool
	writer       io.Writer
}

type Option func(*options)

// WithSpanExporter overrides the configured span exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithLogExporter overrides the configured log exporter.
func WithLogExporter(exp sdklog.Exporter) Option {
	return func(o *options) { o.logExporter = exp }
}

// WithSyncExport exports every span and record as it ends instead of batching.
func WithSyncExport() Option {
	return func(o *options) { o.sync = true }
}

// WithWriter sets the destination of the stdout exporters.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// Resource describes this process to collectors.
func Resource(name, namespace, version string) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.namespace", namespace),
		attribute.String("service.version", version),
	)
}

// New builds both providers for cfg.Exporter. With "none" the providers have
// no processors and drop everything.
func New(ctx context.Context, cfg config.OtelConfig, res *resource.Resource, opts ...Option) (*Providers, error) {
	o := options{writer: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	if o.spanExporter == nil || o.logExporter == nil {
		spanExp, logExp, err := exporters(ctx, cfg, o.writer)
		if err != nil {
			return nil, err
		}
		if o.spanExporter == nil {
			o.spanExporter = spanExp
		}
		if o.logExporter == nil {
			o.logExporter = logExp
		}
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}

	if o.spanExporter != nil {
		if o.sync {
			traceOpts = append(traceOpts, sdktrace.WithSyncer(o.spanExporter))
		} else {
			traceOpts = append(traceOpts, sdktrace.WithBatcher(o.spanExporter))
		}
	}
	if o.logExporter != nil {
		var proc sdklog.Processor
		if o.sync {
			proc = sdklog.NewSimpleProcessor(o.logExporter)
		} else {
			proc = sdklog.NewBatchProcessor(o.logExporter)
		}
		logOpts = append(logOpts, sdklog.WithProcessor(proc))
	}

	return &Providers{
		Tracer: sdktrace.NewTracerProvider(traceOpts...),
		Logger: sdklog.NewLoggerProvider(logOpts...),
	}, nil
}

func exporters(ctx context.Context, cfg config.OtelConfig, w io.Writer) (sdktrace.SpanExporter, sdklog.Exporter, error) {
	switch cfg.Exporter {
	case "", config.ExporterNone:
		return nil, nil, nil

	case config.ExporterStdout:
		spanExp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		logExp, err := stdoutlog.New(stdoutlog.WithWriter(w))
		if err != nil {
			return nil, nil, fmt.Errorf("stdout log exporter: %w", err)
		}
		return spanExp, logExp, nil

	case config.ExporterOTLP:
		var traceOpts []otlptracehttp.Option
		var logOpts []otlploghttp.Option
		// empty endpoint falls back to the OTEL_EXPORTER_OTLP_* environment
		if cfg.Endpoint != "" {
			traceOpts = append(traceOpts, otlptracehttp.WithEndpoint(cfg.Endpoint))
			logOpts = append(logOpts, otlploghttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			logOpts = append(logOpts, otlploghttp.WithInsecure())
		}

		spanExp, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		logExp, err := otlploghttp.New(ctx, logOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("otlp log exporter: %w", err)
		}
		return spanExp, logExp, nil

	default:
		return nil, nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}
}

// Install makes both providers the process-wide defaults.
func (p *Providers) Install() {
	otel.SetTracerProvider(p.Tracer)
	global.SetLoggerProvider(p.Logger)
}

// LogHandler is a slog handler that emits records through the log provider.
func (p *Providers) LogHandler(name, version string) slog.Handler {
	return otelslog.NewHandler(name,
		otelslog.WithLoggerProvider(p.Logger),
		otelslog.WithVersion(version),
	)
}

// Shutdown flushes pending spans and records.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.Tracer.Shutdown(ctx), p.Logger.Shutdown(ctx))
}
