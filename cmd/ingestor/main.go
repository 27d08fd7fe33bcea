package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"sensekit-server/cmd/config"
	"sensekit-server/cmd/ingestor/wire"
	"sensekit-server/internal/infra/async"
	"sensekit-server/internal/infra/node"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

var (
	logLevelMapping = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
)

func main() {
	config := config.LoadConfig()
	nodeInfo := node.GetNodeInfo()

	level := logLevelMapping[config.General.LogLevel]
	baseHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: level, ReplaceAttr: slogReplaceAttr})
	handler := baseHandler.WithAttrs([]slog.Attr{
		slog.String("version", nodeInfo.Version),
		slog.String("node_id", nodeInfo.ID),
	})
	slog.SetDefault(slog.New(handler))
	slog.Info("sensekit ingestor is initializing",
		slog.String("environment", config.General.Environment),
		slog.String("hostname", nodeInfo.Hostname),
		slog.String("ip", nodeInfo.IPAddress))
	slog.Debug("config loaded", "data", config)

	shutdownOtel := startOTel(nodeInfo)

	// an invalid calibration table or profile stops the process here
	ingestor, cleanup, err := wire.InitializeIngestor()
	if err != nil {
		panic(err)
	}

	appCtx, cancelFn := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go async.Supervise(appCtx, "packet-ingestor", ingestor, wg.Done)

	signalChannel := make(chan os.Signal, 2)
	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)

	<-signalChannel
	slog.Info("shutdown signal received, draining")
	cancelFn()
	wg.Wait()
	cleanup()

	if err := shutdownOtel(); err != nil {
		slog.Error("flushing telemetry", slog.Any("error", err))
	}

	slog.Info("good bye!!!")
	os.Exit(0)
}

func slogReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source := a.Value.Any().(*slog.Source)
		source.File = filepath.Base(source.File)
		return slog.Any(a.Key, source)
	}
	return a
}

type ShutdownFunc func() error

const (
	_defautlEndpoint = "localhost:4317"
	_collectPeriod   = 30 * time.Second
	_collectTimeout  = 35 * time.Second
	_minimumInterval = time.Minute
)

var (
	// seconds; packet handling is expected to stay well under one
	_histogramBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

func startOTel(nodeInfo node.Node) ShutdownFunc {
	slog.Info("starting OTel providers")
	shutdown, err := otelStart(context.Background(), nodeInfo)
	if err != nil {
		panic(err)
	}

	return shutdown
}

func otelStart(ctx context.Context, nodeInfo node.Node) (ShutdownFunc, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("sensekit-ingestor"),
		semconv.ServiceVersionKey.String(nodeInfo.Version),
		semconv.ServiceInstanceIDKey.String(nodeInfo.ID),
	)

	metricsShutdownFunc, err := startMetricsProvider(ctx, res)
	if err != nil {
		return nil, err
	}

	traceShutdownFunc, err := startTraceProvider(ctx, res)
	if err != nil {
		return nil, err
	}

	return func() error {
		if err := metricsShutdownFunc(); err != nil {
			return err
		}
		if err := traceShutdownFunc(); err != nil {
			return err
		}
		return nil
	}, nil
}

func otelEndpoint() string {
	if value, ok := os.LookupEnv("SENSEKIT_SERVER_OTELCOL_ENDPOINT"); ok {
		return value
	}
	return _defautlEndpoint
}

func startTraceProvider(ctx context.Context, res *resource.Resource) (ShutdownFunc, error) {
	exp, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(otelEndpoint()),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func() error {
		return tp.Shutdown(ctx)
	}, nil
}

func startMetricsProvider(ctx context.Context, res *resource.Resource) (ShutdownFunc, error) {
	exp, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(otelEndpoint()),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	mp := newMeterProvider(exp, res)
	otel.SetMeterProvider(mp)

	err = runtime.Start(runtime.WithMinimumReadMemStatsInterval(_minimumInterval))
	if err != nil {
		return nil, err
	}

	return func() error {
		return mp.Shutdown(ctx)
	}, nil
}

func newMeterProvider(metricExporter metric.Exporter, res *resource.Resource) *metric.MeterProvider {
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(
			metric.NewPeriodicReader(
				metricExporter,
				metric.WithTimeout(_collectTimeout),
				metric.WithInterval(_collectPeriod))),
		metric.WithView(metric.NewView(
			metric.Instrument{
				Name: "*",
				Kind: metric.InstrumentKindHistogram,
			},
			metric.Stream{
				Aggregation: metric.AggregationExplicitBucketHistogram{
					Boundaries: _histogramBuckets,
				},
			},
		)),
	)
}
