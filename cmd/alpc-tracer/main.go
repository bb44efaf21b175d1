// alpc-tracer correlates ALPC messages sent and received by one Windows
// process and prints who it talked to.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mrzor/alpc-tracer/internal/attributes"
	"github.com/mrzor/alpc-tracer/internal/config"
	"github.com/mrzor/alpc-tracer/internal/correlator"
	"github.com/mrzor/alpc-tracer/internal/etwsource"
	"github.com/mrzor/alpc-tracer/internal/eventprocessor"
	"github.com/mrzor/alpc-tracer/internal/eventstream"
	"github.com/mrzor/alpc-tracer/internal/metrics"
	"github.com/mrzor/alpc-tracer/internal/msgcache"
	"github.com/mrzor/alpc-tracer/internal/otel"
	"github.com/mrzor/alpc-tracer/internal/output"
	"github.com/mrzor/alpc-tracer/internal/procmeta"
	"github.com/mrzor/alpc-tracer/internal/replay"
	"github.com/mrzor/alpc-tracer/internal/timesync"
)

// Version information injected at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogger builds the root logger. Logs go to stderr so they never
// mix with the trace output.
func setupLogger(envCfg *config.EnvConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(envCfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid ALPC_TRACE_LOG_LEVEL: %w", err)
	}

	logConfig := zap.NewProductionConfig()
	logConfig.Level = level
	logConfig.Encoding = envCfg.LogFormat
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if envCfg.LogFormat == "console" {
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return logConfig.Build()
}

// setupOutput opens the trace destination.
func setupOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func() error, error) {
	if cfg.OutputPath == "" {
		return stdout, func() error { return nil }, nil
	}

	//nolint:gosec // Path is supplied by the operator on the command line
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// setupCache picks the pending-message cache.
func setupCache(cfg *config.Config) (msgcache.Cache, error) {
	if cfg.MaxPending == 0 {
		return msgcache.NewMap(), nil
	}
	return msgcache.NewBounded(cfg.MaxPending)
}

// serveMetrics exposes reg on /metrics and returns a shutdown function.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("Shutting down metrics server", zap.Error(err))
		}
	}
}

// setupOTEL initializes the OTEL provider and returns the span exporter
// and a cleanup function that ends the session span and flushes.
func setupOTEL(ctx context.Context, cfg *config.Config, clock *timesync.Converter, logger *zap.Logger) (*output.SpanExporter, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, err
	}

	traceID, warnings, err := attributes.ResolveTraceID(cfg.TraceID)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		if w.Key == "_trace_id_invalid_warning" {
			logger.Warn("Hashing trace ID", zap.String("input", cfg.TraceID))
		}
	}

	evaluator, err := attributes.NewEvaluator(cfg.CustomAttributes, logger)
	if err != nil {
		return nil, nil, err
	}

	tp, err := otel.InitProvider(ctx, otelCfg, traceID, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}

	exporter := output.NewSpanExporter(tp.Tracer("alpc-tracer"), cfg.PID, evaluator, clock, warnings...)

	cleanup := func() {
		exporter.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
			logger.Error("Shutting down OTEL provider", zap.Error(err))
		}
	}
	return exporter, cleanup, nil
}

// setupSource opens the replay file or the live ETW session.
func setupSource(cfg *config.Config, clock *timesync.Converter, logger *zap.Logger) (eventstream.Source, error) {
	if cfg.ReplayPath != "" {
		return replay.Open(cfg.ReplayPath)
	}

	source, err := etwsource.Open(etwsource.Config{
		Names: procmeta.NewManager(),
		Clock: clock,
	}, logger)
	if errors.Is(err, etwsource.ErrUnsupported) {
		return nil, fmt.Errorf("%w; use --replay to correlate a recorded session", err)
	}
	if err != nil {
		return nil, err
	}
	return source, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	envCfg, err := config.ParseEnvConfig()
	if err != nil {
		return err
	}

	logger, err := setupLogger(envCfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.ParseArgs(args, fmt.Sprintf("%s (%s)", version, commit), stderr)
	if errors.Is(err, config.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("Starting alpc-tracer",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("pid", cfg.PID),
		zap.Stringer("mode", cfg.Mode),
		zap.String("replay", cfg.ReplayPath),
	)

	out, closeOut, err := setupOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeOut(); err != nil {
			logger.Error("Closing output", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)
	if cfg.MetricsListen != "" {
		defer serveMetrics(cfg.MetricsListen, reg, logger)()
	}

	cache, err := setupCache(cfg)
	if err != nil {
		return err
	}

	clock := timesync.NewConverter(time.Now())
	opts := correlator.Options{Cache: cache, Metrics: m}
	if cfg.OTEL {
		exporter, cleanupOTEL, err := setupOTEL(ctx, cfg, clock, logger)
		if err != nil {
			return err
		}
		defer cleanupOTEL()
		opts.Observers = append(opts.Observers, exporter)
	}

	engine := correlator.NewWithOptions(cfg.PID, out, cfg.Mode, logger, opts)
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("Closing message cache", zap.Error(err))
		}
	}()

	source, err := setupSource(cfg, clock, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.Warn("Closing event source", zap.Error(err))
		}
	}()

	var handlers []eventstream.EventHandler
	if cfg.RecordPath != "" {
		recorder, err := replay.Create(cfg.RecordPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.Error("Closing record file", zap.Error(err))
			}
		}()
		handlers = append(handlers, recorder)
	}
	handlers = append(handlers, eventprocessor.NewProcessor(engine, m))

	stream := eventstream.New(source, logger, handlers...)
	if err := stream.Start(ctx); err != nil {
		return err
	}
	<-stream.Done()
	streamErr := stream.Wait()

	logger.Info("Event stream finished",
		zap.Uint64("events", stream.Events()),
		zap.Int("peers", len(engine.Peers())),
	)

	// The summary is printed even when the source failed midway
	if err := engine.RenderSummary(); err != nil {
		return err
	}
	return streamErr
}
