package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-dex-bot/internal/config"
	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/pricing"
	"solana-dex-bot/internal/storage"
	chstore "solana-dex-bot/internal/storage/clickhouse"
	"solana-dex-bot/internal/storage/memory"
	"solana-dex-bot/internal/storage/migrations"
	pgstore "solana-dex-bot/internal/storage/postgres"
	redisstore "solana-dex-bot/internal/storage/redis"
	s3archive "solana-dex-bot/internal/storage/s3"
	sqlitestore "solana-dex-bot/internal/storage/sqlite"
)

// priceMirrorTTL expires mirrored prices of mints that stopped trading.
const priceMirrorTTL = 24 * time.Hour

// Dependencies holds the persistence backends selected by configuration.
// Unconfigured backends fall back to memory; the archive and publisher
// stay nil.
type Dependencies struct {
	Journal   storage.TradeJournal
	State     storage.StateStore
	TickSinks []pricing.NamedSink
	Archive   storage.Archive
	Publisher storage.Publisher

	closers []func() error
}

// MemoryDependencies returns in-memory backends only.
func MemoryDependencies() *Dependencies {
	return &Dependencies{
		Journal: memory.NewTradeJournal(),
		State:   memory.NewStateStore(),
	}
}

// OpenDependencies connects every configured backend, applying migrations
// where the backend has them. On error everything opened so far is closed.
func OpenDependencies(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (_ *Dependencies, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := MemoryDependencies()
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithMaxConns(4))
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		applied, err := migrations.RunPostgres(ctx, pool)
		if err != nil {
			return nil, err
		}
		logMigrations(logger, "postgres", applied)
		d.Journal = pgstore.NewTradeJournal(pool)
		logger.Info("trade journal: postgres")
	}

	if cfg.ClickhouseDSN != "" {
		conn, applied, err := migrations.RunClickhouse(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, err
		}
		logMigrations(logger, "clickhouse", applied)
		d.closers = append(d.closers, conn.Close)
		d.TickSinks = append(d.TickSinks, pricing.NamedSink{Name: "clickhouse", Sink: chstore.NewTickStore(conn)})
		logger.Info("tick store: clickhouse")
	}

	if cfg.SQLitePath != "" {
		state, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, state.Close)
		d.State = state
		logger.Info("state store: sqlite", zap.String("path", cfg.SQLitePath))
	}

	if cfg.Redis.Addr != "" {
		client, err := redisstore.New(ctx, redisstore.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, client.Close)
		mirror := redisstore.NewPriceMirror(client, priceMirrorTTL)
		d.TickSinks = append(d.TickSinks, pricing.NamedSink{Name: "redis", Sink: &mirrorSink{mirror: mirror}})
		d.Publisher = redisstore.NewPublisher(client)
		logger.Info("price mirror: redis", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.S3.Bucket != "" {
		archive, err := s3archive.New(ctx, s3archive.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			Prefix:         cfg.S3.Prefix,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		d.Archive = archive
		logger.Info("closed-position archive: s3", zap.String("bucket", cfg.S3.Bucket))
	}

	return d, nil
}

// Close releases backends in reverse opening order.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close storage: %w", errors.Join(errs...))
	}
	return nil
}

func logMigrations(logger *zap.Logger, backend string, applied []string) {
	if len(applied) > 0 {
		logger.Info("applied migrations", zap.String("backend", backend), zap.Strings("versions", applied))
	}
}

// mirrorSink adapts a price mirror to the tick writer, keeping only the
// newest tick per mint of each batch.
type mirrorSink struct {
	mirror storage.PriceMirror
}

func (s *mirrorSink) InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error {
	latest := make(map[string]*domain.PriceTick, len(ticks))
	var order []string
	for _, t := range ticks {
		prev, ok := latest[t.Mint]
		if !ok {
			order = append(order, t.Mint)
		}
		if !ok || t.TimestampMs >= prev.TimestampMs {
			latest[t.Mint] = t
		}
	}
	for _, mint := range order {
		t := latest[mint]
		if err := s.mirror.SetPrice(ctx, mint, t.Price, time.UnixMilli(t.TimestampMs)); err != nil {
			return err
		}
	}
	return nil
}
