package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Setup initializes trace, metrics and logs.
// With an empty endpoint only JSON stdout logging is exported; spans and
// metrics are still recorded by the SDK providers so the code paths match.
// Returns a zap logger, tracer, meter and a shutdown function.
func Setup(ctx context.Context, serviceName, endpoint string) (*zap.Logger, trace.Tracer, metric.Meter, func(context.Context), error) {
	var noopMeter metric.Meter

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, nil, noopMeter, nil, err
	}

	jsonCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		zapcore.InfoLevel,
	)

	otel.SetTextMapPropagator(propagation.TraceContext{})

	if endpoint == "" {
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		logger := zap.New(jsonCore)
		shutdown := func(ctx context.Context) {
			_ = logger.Sync()
			_ = tp.Shutdown(ctx)
			_ = mp.Shutdown(ctx)
		}
		return logger, tp.Tracer(serviceName), mp.Meter(serviceName), shutdown, nil
	}

	// --- trace ---
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, noopMeter, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer(serviceName)

	// --- metrics ---
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, noopMeter, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)
	otel.SetMeterProvider(mp)
	meter := mp.Meter(serviceName)

	// --- log ---
	logExporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, noopMeter, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)

	otelCore := otelzap.NewCore(serviceName, otelzap.WithLoggerProvider(lp))
	logger := zap.New(zapcore.NewTee(otelCore, jsonCore))

	shutdown := func(ctx context.Context) {
		_ = logger.Sync()
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
	}

	return logger, tracer, meter, shutdown, nil
}

// Nop returns a silent logger, tracer and metrics set for tests.
func Nop() (*zap.Logger, trace.Tracer, *Metrics) {
	m, err := NewMetrics(metricnoop.NewMeterProvider().Meter("nop"))
	if err != nil {
		panic("noop metrics: " + err.Error())
	}
	return zap.NewNop(), tracenoop.NewTracerProvider().Tracer("nop"), m
}
