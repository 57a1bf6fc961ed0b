package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"solana-dex-bot/internal/app"
	"solana-dex-bot/internal/config"
	"solana-dex-bot/internal/ingestion"
	"solana-dex-bot/internal/logging"
	"solana-dex-bot/internal/observability"
)

// shutdownMargin covers the snapshot save and sink flushes after the last batch.
const shutdownMargin = 15 * time.Second

// shutdownGrace bounds the graceful shutdown after the first signal. The
// largest batch is an exit sweep selling every open position, or one signal
// per strategy, and each signal may take the full executor timeout.
func shutdownGrace(cfg *config.Config) time.Duration {
	batch := max(cfg.Bot.MaxTotalPositions, len(cfg.Strategies), 1)
	return time.Duration(batch)*cfg.Executor.Timeout.Duration + shutdownMargin
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file (.yaml, .yml or .json)")
	recordPath := flag.String("record", "", "Append every feed message to this file for later replay")
	dryRun := flag.Bool("dry-run", false, "Simulate executions regardless of bot.dry_run")
	flag.Parse()

	var overrides []config.Override
	if *dryRun {
		overrides = append(overrides, func(c *config.Config) { c.Bot.DryRun = true })
	}
	cfg, err := config.Load(*configPath, overrides...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		}

		// A second signal or a stuck shutdown forces exit
		grace := shutdownGrace(cfg)
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(grace):
			logger.Error("graceful shutdown timed out, forcing exit", zap.Duration("after", grace))
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, *recordPath, logger)
	close(done)
	if err != nil {
		logger.Error("bot failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, recordPath string, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg, app.MetricsNamespace)

	deps, err := app.OpenDependencies(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("close storage", zap.Error(err))
		}
	}()

	ws := ingestion.NewWSSource(ingestion.WSConfig{
		URL:               cfg.Feed.URL,
		ReconnectDelay:    cfg.Feed.ReconnectDelay.Duration,
		MaxReconnectDelay: cfg.Feed.MaxReconnectDelay.Duration,
		PingInterval:      cfg.Feed.PingInterval.Duration,
	}, logger, metrics)

	var source app.Source = ws
	if recordPath != "" {
		f, err := os.OpenFile(recordPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open record file: %w", err)
		}
		defer f.Close()
		rec := ingestion.NewRecorder(f)
		source = recordingSource{src: ws, rec: rec}
		defer func() {
			if err := rec.Err(); err != nil {
				logger.Error("recording feed", zap.String("path", recordPath), zap.Error(err))
			}
		}()
	}

	bot, err := app.New(cfg, deps, source, logger,
		app.WithRegistry(reg),
		app.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	if !cfg.Bot.DryRun {
		hctx, hcancel := context.WithTimeout(ctx, cfg.Executor.Timeout.Duration)
		err := bot.CheckExecutor(hctx)
		hcancel()
		if err != nil {
			return fmt.Errorf("executor health check: %w", err)
		}
	}

	logger.Info("starting bot",
		zap.String("feed", cfg.Feed.URL),
		zap.Bool("dry_run", cfg.Bot.DryRun),
		zap.Int("strategies", len(cfg.Strategies)),
	)
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// recordingSource tees the live feed into a replay file.
type recordingSource struct {
	src app.Source
	rec *ingestion.Recorder
}

func (s recordingSource) Run(ctx context.Context, sink ingestion.Sink) error {
	return s.src.Run(ctx, s.rec.Tee(sink))
}
