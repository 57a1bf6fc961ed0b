package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-dex-bot/internal/app"
	"solana-dex-bot/internal/config"
	"solana-dex-bot/internal/ingestion"
	"solana-dex-bot/internal/logging"
	"solana-dex-bot/internal/position"
	"solana-dex-bot/internal/reporting"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	input := flag.String("input", "", "Recorded feed file (JSON lines)")
	format := flag.String("format", "json", "Output format: json, markdown, csv or positions")
	persist := flag.Bool("persist", false, "Write to the configured storage backends instead of memory")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "--input is required")
		os.Exit(2)
	}

	// Replays never trade and never serve metrics
	cfg, err := config.LoadOffline(*configPath, func(c *config.Config) {
		c.Bot.DryRun = true
		c.Metrics.Addr = "off"
	})
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *format {
	case "json", "markdown", "csv", "positions":
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		os.Exit(2)
	}

	exp, err := replay(ctx, cfg, *input, *persist, logger)
	if err != nil {
		logger.Error("replay failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	if err := write(os.Stdout, *format, exp); err != nil {
		fmt.Fprintf(os.Stderr, "write result: %v\n", err)
		os.Exit(1)
	}
}

func write(w io.Writer, format string, exp position.Export) error {
	if format == "positions" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(exp)
	}

	report := reporting.Build(exp, time.Now())
	switch format {
	case "markdown":
		_, err := io.WriteString(w, reporting.RenderMarkdown(report))
		return err
	case "csv":
		_, err := io.WriteString(w, reporting.RenderCSV(report.Strategies))
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
}

func replay(ctx context.Context, cfg *config.Config, input string, persist bool, logger *zap.Logger) (position.Export, error) {
	deps := app.MemoryDependencies()
	if persist {
		var err error
		deps, err = app.OpenDependencies(ctx, cfg.Storage, logger)
		if err != nil {
			return position.Export{}, fmt.Errorf("open storage: %w", err)
		}
	}
	defer deps.Close()

	bot, err := app.New(cfg, deps, ingestion.NewFileSource(input), logger, app.WithFeedClock())
	if err != nil {
		return position.Export{}, err
	}
	if err := bot.Run(ctx); err != nil {
		return position.Export{}, err
	}
	return bot.Positions().ExportData(), nil
}
