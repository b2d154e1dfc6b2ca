// Package telemetry installs the OpenTelemetry trace and metric providers
package telemetry

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Config selects which providers to install. Writer defaults to stdout.
type Config struct {
	Tracing        bool
	Metrics        bool
	MetricInterval time.Duration
	Writer         io.Writer
}

// ShutdownFunc flushes and stops the installed providers
type ShutdownFunc func(context.Context) error

// Setup installs the providers selected in cfg as the otel globals
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	var shutdownFuncs []func(context.Context) error

	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Tracing {
		tp, err := newTracerProvider(cfg)
		if err != nil {
			return shutdown, errors.Join(err, shutdown(ctx))
		}
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
		otel.SetTracerProvider(tp)
	}

	if cfg.Metrics {
		mp, err := newMeterProvider(cfg)
		if err != nil {
			return shutdown, errors.Join(err, shutdown(ctx))
		}
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}

	return shutdown, nil
}

func newTracerProvider(cfg Config) (*trace.TracerProvider, error) {
	opts := []stdouttrace.Option{}
	if cfg.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(trace.WithBatcher(exporter)), nil
}

func newMeterProvider(cfg Config) (*metric.MeterProvider, error) {
	opts := []stdoutmetric.Option{}
	if cfg.Writer != nil {
		opts = append(opts, stdoutmetric.WithWriter(cfg.Writer))
	}
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, err
	}
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))),
	), nil
}
