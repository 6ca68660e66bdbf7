package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/priority-fees/internal/api"
	"github.com/rickgao/priority-fees/internal/config"
	"github.com/rickgao/priority-fees/internal/connection"
	"github.com/rickgao/priority-fees/internal/database"
	"github.com/rickgao/priority-fees/internal/metrics"
	"github.com/rickgao/priority-fees/internal/priorityfee"
	"github.com/rickgao/priority-fees/internal/version"
	"github.com/rickgao/priority-fees/internal/writer"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "configs/feesubscriber.local.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting feesubscriber",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("feesubscriber failed", "error", err)
		os.Exit(1)
	}

	logger.Info("feesubscriber stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Fee service client
	apiClient := api.NewClient(
		api.WithLogger(logger),
		api.WithTimeout(cfg.Service.Timeout),
		api.WithRetries(cfg.Service.MaxRetries, cfg.Service.RetryBackoff),
		api.WithRateLimit(cfg.Service.RateLimit),
		api.WithBreaker(api.BreakerConfig{
			MaxFailures: cfg.Service.Breaker.MaxFailures,
			OpenTimeout: cfg.Service.Breaker.OpenTimeout,
		}),
	)

	opts := []priorityfee.Option{
		priorityfee.WithLogger(logger),
		priorityfee.WithMetrics(m),
	}

	srv := &server{
		gatherer:    reg,
		metricsPath: cfg.Metrics.Path,
		logger:      logger,
	}

	// Snapshot recorder
	var snapshots *writer.SnapshotWriter
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		logger.Info("database connected")

		snapshots = writer.NewSnapshotWriter(writer.WriterConfig{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
		}, pool, m, logger.With("component", "writer"))
		if err := snapshots.Start(ctx); err != nil {
			return fmt.Errorf("start writer: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			snapshots.Stop(stopCtx)
		}()

		opts = append(opts, priorityfee.WithUpdateHook(snapshots.Record))
		srv.db = pool
	}

	// Subscriber
	subscriber, err := priorityfee.New(priorityfee.Config{
		Frequency:   cfg.Subscriber.Frequency,
		Markets:     cfg.Subscriber.Markets,
		Endpoint:    cfg.Service.Endpoint,
		LoadTimeout: cfg.Subscriber.LoadTimeout,
	}, apiClient, opts...)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	srv.fees = subscriber

	if err := subscriber.Subscribe(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		subscriber.Close(stopCtx)
	}()

	// Push feed
	if cfg.Stream.Enabled {
		feed := connection.NewFeed(connection.FeedConfig{
			URL:               cfg.Stream.URL,
			Markets:           cfg.Subscriber.Markets,
			ReconnectBaseWait: cfg.Stream.ReconnectBaseDelay,
			ReconnectMaxWait:  cfg.Stream.ReconnectMaxDelay,
			PingTimeout:       cfg.Stream.PingTimeout,
			WriteTimeout:      cfg.Stream.WriteTimeout,
			BufferSize:        cfg.Stream.BufferSize,
		}, subscriber, m, logger.With("component", "stream"))
		if err := feed.Start(ctx); err != nil {
			return fmt.Errorf("start stream: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			feed.Stop(stopCtx)
		}()
		srv.stream = feed
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Metrics.Port)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	logger.Info("feesubscriber running",
		"markets", len(subscriber.Markets()),
		"frequency", cfg.Subscriber.Frequency,
		"stream", cfg.Stream.Enabled,
		"recorder", snapshots != nil,
	)

	return g.Wait()
}

// newLogger builds the process logger from the log settings.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
