// Command arena runs the authoritative snake arena behind a websocket
// endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/snekarena/config"
	"github.com/brensch/snekarena/logging"
	"github.com/brensch/snekarena/server"
	"github.com/brensch/snekarena/sim"
	"github.com/brensch/snekarena/store"
	"github.com/brensch/snekarena/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "arena:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", getEnvOrDefault("ARENA_CONFIG", ""), "YAML config file overlaying the defaults")
	listen := flag.String("listen", getEnvOrDefault("LISTEN", ""), "HTTP listen address (overrides server.listen)")
	logLevel := flag.String("log-level", getEnvOrDefault("LOG_LEVEL", ""), "debug, info, warn or error (overrides log.level)")
	logFormat := flag.String("log-format", getEnvOrDefault("LOG_FORMAT", ""), "text, json or pretty (overrides log.format)")
	telemetryDir := flag.String("telemetry-dir", getEnvOrDefault("TELEMETRY_DIR", ""), "Directory for ticks.csv (overrides telemetry.dir)")
	traceDir := flag.String("trace-dir", getEnvOrDefault("TRACE_DIR", ""), "Directory for bot decision parquet batches (overrides trace.dir)")
	seed := flag.Int64("seed", getEnvInt64OrDefault("SEED", 0), "Random seed; 0 uses the clock")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *telemetryDir != "" {
		cfg.Telemetry.Dir = *telemetryDir
	}
	if *traceDir != "" {
		cfg.Trace.Dir = *traceDir
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, logging.Options{Level: level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector, err := telemetry.NewCollector(cfg.Telemetry.Dir, cfg.Telemetry.Window, logger.With("component", "telemetry"))
	if err != nil {
		return err
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Warn("close telemetry", "err", err)
		}
	}()

	var srv *server.Server
	opts := []sim.Option{
		sim.WithLogger(logger.With("component", "sim")),
		sim.WithRand(rand.New(rand.NewSource(*seed))),
		sim.WithObserver(collector),
		sim.WithPublisher(sim.PublisherFunc(func(e sim.Event) { srv.Publish(e) })),
	}
	var recorder *store.Recorder
	if cfg.Trace.Dir != "" {
		recorder = store.NewRecorder(cfg.Trace.Dir, cfg.Trace.FlushRows, 4*cfg.Trace.FlushRows, logger.With("component", "trace"))
		opts = append(opts, sim.WithRecorder(recorder))
	}
	simulation := sim.New(cfg.SimConfig(), opts...)
	srv = server.New(server.Config{
		MaxPlayers:     cfg.Server.MaxPlayers,
		WriteTimeout:   cfg.Server.WriteTimeout,
		SendBuffer:     cfg.Server.SendBuffer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, simulation, logger.With("component", "server"))

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("arena starting",
		"listen", cfg.Server.Listen,
		"board", fmt.Sprintf("%dx%d", cfg.Board.Width, cfg.Board.Height),
		"seed", *seed,
		"telemetry_dir", cfg.Telemetry.Dir,
		"trace_dir", cfg.Trace.Dir,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return simulation.Run(gctx) })
	if recorder != nil {
		g.Go(func() error { return recorder.Run(gctx) })
	}
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("arena stopped", "dropped_frames", srv.Dropped())
	return err
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt64OrDefault(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}
