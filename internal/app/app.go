// Package app wires the bot components and runs the single processing loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-dex-bot/internal/config"
	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/execution"
	"solana-dex-bot/internal/exitcheck"
	"solana-dex-bot/internal/ingestion"
	"solana-dex-bot/internal/normalization"
	"solana-dex-bot/internal/notify"
	"solana-dex-bot/internal/observability"
	"solana-dex-bot/internal/position"
	"solana-dex-bot/internal/pricing"
	"solana-dex-bot/internal/risk"
	"solana-dex-bot/internal/solana"
	"solana-dex-bot/internal/storage"
	"solana-dex-bot/internal/strategy"
	"solana-dex-bot/internal/tradeapi"
)

const (
	// MetricsNamespace prefixes every exported metric.
	MetricsNamespace = "dexbot"
	storeTimeout     = 5 * time.Second
)

// Source produces raw feed messages until its context ends or input is
// exhausted.
type Source interface {
	Run(ctx context.Context, sink ingestion.Sink) error
}

// Option configures an App.
type Option func(*App)

// WithRegistry registers metrics on reg and serves them when
// metrics.addr is set.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// WithMetrics shares metrics already registered on the WithRegistry
// registry, so the feed source and the bot report to the same collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithExecutor replaces the executor chosen from configuration.
func WithExecutor(e execution.Executor) Option {
	return func(a *App) { a.executor = e }
}

// WithClock overrides time.Now for every component.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithFeedClock drives every component from message receive times instead
// of the wall clock, and sweeps exits after each price update of a held
// mint instead of on the exit ticker. Used for replays.
func WithFeedClock() Option {
	return func(a *App) { a.feedClock = true }
}

// App owns every component. Only the processing loop touches strategies,
// positions and the coordinator.
type App struct {
	cfg    *config.Config
	deps   *Dependencies
	source Source
	logger *zap.Logger
	now    func() time.Time

	registry *prometheus.Registry
	metrics  *observability.Metrics

	queue       *ingestion.Queue
	normalizer  *normalization.Normalizer
	prices      *pricing.Cache
	ticks       *pricing.TickWriter
	positions   *position.Manager
	engine      *strategy.Engine
	gate        *risk.Gate
	executor    execution.Executor
	tradeClient *tradeapi.Client
	coordinator *execution.Coordinator
	checker     *exitcheck.Checker
	notifier    *notify.Dispatcher

	feedClock bool
	feedTime  atomic.Int64 // µs of the message being processed

	running atomic.Bool
}

// New builds the bot from a validated configuration.
func New(cfg *config.Config, deps *Dependencies, source Source, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps == nil {
		deps = MemoryDependencies()
	}
	a := &App{
		cfg:    cfg,
		deps:   deps,
		source: source,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.feedClock {
		a.now = a.feedNow
	}
	if a.metrics == nil && a.registry != nil {
		a.metrics = observability.NewMetrics(a.registry, MetricsNamespace)
	}

	a.queue = ingestion.NewQueue(cfg.Feed.QueueSize)
	a.normalizer = normalization.New()
	a.prices = pricing.NewCache(pricing.WithClock(a.now))
	a.ticks = pricing.NewTickWriter(deps.TickSinks,
		cfg.Storage.TickQueueSize, cfg.Storage.TickBatchSize, cfg.Storage.TickFlushInterval.Duration,
		logger, a.metrics)

	notifyOpts := []notify.Option{
		notify.WithEvents(cfg.Notify.Events),
		notify.WithMetrics(a.metrics),
		notify.WithClock(a.now),
	}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		notifyOpts = append(notifyOpts, notify.WithSender("telegram",
			notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)))
	}
	if deps.Publisher != nil && cfg.Storage.Redis.Channel != "" {
		notifyOpts = append(notifyOpts, notify.WithSender("redis",
			notify.NewPubSub(deps.Publisher, cfg.Storage.Redis.Channel)))
	}
	a.notifier = notify.NewDispatcher(logger, notifyOpts...)

	a.positions = position.NewManager(a.prices,
		position.WithClock(a.now),
		position.WithLogger(logger),
		position.WithListener(a.notifier),
		position.WithListener(&closedJournal{journal: deps.Journal, logger: logger}),
	)

	strategies, err := strategy.NewRegistry().Build(cfg.Strategies, strategy.Env{
		Prices:    a.prices,
		Positions: a.positions,
		Now:       a.now,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build strategies: %w", err)
	}
	a.engine = strategy.NewEngine(strategies, logger, a.metrics)

	a.gate = risk.NewGate(risk.Limits{
		MaxTotalPositions:    cfg.Bot.MaxTotalPositions,
		MaxTotalInvestment:   cfg.Bot.MaxTotalInvestment,
		EmergencyStop:        cfg.Bot.EmergencyStop,
		MaxDailyLoss:         cfg.Bot.MaxDailyLoss,
		MaxConsecutiveLosses: cfg.Bot.MaxConsecutiveLosses,
		PauseAfterLoss:       cfg.Bot.PauseAfterLoss.Duration,
	}, a.positions, cfg.Strategies, a.now)

	if a.executor == nil {
		if cfg.Bot.DryRun {
			a.executor = execution.NewDryRunExecutor(a.prices, a.now)
		} else {
			a.tradeClient = tradeapi.NewClient(cfg.Executor.URL,
				tradeapi.WithTimeout(cfg.Executor.Timeout.Duration),
				tradeapi.WithMaxRetries(cfg.Executor.RetryCount()),
				tradeapi.WithRetryDelay(cfg.Executor.RetryDelay.Duration),
			)
			a.executor = execution.NewLiveExecutor(a.tradeClient, a.now)
		}
	}

	var accounts *solana.AccountResolver
	if cfg.Solana.RPCURL != "" {
		accounts = solana.NewAccountResolver(solana.NewRPCClient(cfg.Solana.RPCURL))
	} else {
		accounts = solana.NewAccountResolver(nil)
	}

	a.coordinator = execution.NewCoordinator(a.gate, a.executor, a.positions,
		execution.WithResolver(execution.NewParamResolver(accounts)),
		execution.WithPrices(a.prices),
		execution.WithResults(a.engine),
		execution.WithJournal(deps.Journal),
		execution.WithNotifier(a.notifier),
		execution.WithMetrics(a.metrics),
		execution.WithLogger(logger),
		execution.WithTimeout(cfg.Executor.Timeout.Duration),
		execution.WithDryRun(cfg.Bot.DryRun),
		execution.WithClock(a.now),
	)
	a.checker = exitcheck.New(a.positions, a.engine, a.coordinator, logger)

	return a, nil
}

func (a *App) feedNow() time.Time {
	if us := a.feedTime.Load(); us > 0 {
		return time.UnixMicro(us)
	}
	return time.Now()
}

// Positions exposes the position manager for reporting.
func (a *App) Positions() *position.Manager { return a.positions }

// Notifications exposes the event dispatcher for subscribers.
func (a *App) Notifications() *notify.Dispatcher { return a.notifier }

// SetEmergencyStop toggles the kill switch.
func (a *App) SetEmergencyStop(on bool) { a.gate.SetEmergencyStop(on) }

// CheckExecutor verifies the trading service is up. Always nil in dry run.
func (a *App) CheckExecutor(ctx context.Context) error {
	if a.tradeClient == nil {
		return nil
	}
	return a.tradeClient.CheckHealth(ctx)
}

// Health reports whether the processing loop is running.
func (a *App) Health() error {
	if !a.running.Load() {
		return errors.New("processing loop not running")
	}
	if a.gate.EmergencyStopped() {
		return errors.New("emergency stop active")
	}
	return nil
}

// Run restores state, then processes feed messages until ctx is canceled
// or the source is exhausted. Shutdown stops the feed, lets the in-flight
// batch finish, stops the tickers, destroys strategies and saves the
// position snapshot. Closing storage is left to the owner of the
// dependencies.
func (a *App) Run(ctx context.Context) error {
	if err := a.restore(ctx); err != nil {
		return err
	}
	if err := a.engine.InitializeAll(ctx); err != nil {
		return fmt.Errorf("initialize strategies: %w", err)
	}
	a.updatePositionMetrics()

	// Background writers outlive the loop so they can flush after it ends.
	auxCtx, stopAux := context.WithCancel(context.WithoutCancel(ctx))
	aux, auxCtx := errgroup.WithContext(auxCtx)
	aux.Go(func() error { return a.ticks.Run(auxCtx) })
	aux.Go(func() error { return a.notifier.Run(auxCtx) })
	if a.registry != nil && a.cfg.Metrics.Addr != "" && a.cfg.Metrics.Addr != "off" {
		srv := observability.NewServer(a.cfg.Metrics.Addr, a.registry, a.Health, a.logger)
		aux.Go(func() error { return srv.Run(auxCtx) })
	}

	a.running.Store(true)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer a.queue.Close()
		err := a.source.Run(gctx, a.sink(gctx))
		if gctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("feed: %w", err)
		}
		a.logger.Info("feed exhausted")
		return nil
	})
	g.Go(func() error { return a.loop(gctx) })

	runErr := g.Wait()
	a.running.Store(false)

	if err := a.engine.DestroyAll(); err != nil {
		a.logger.Error("destroy strategies", zap.Error(err))
	}
	a.saveSnapshot(context.WithoutCancel(ctx))
	a.updatePositionMetrics()

	stopAux()
	if err := aux.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("background worker failed", zap.Error(err))
		runErr = errors.Join(runErr, err)
	}
	a.logger.Info("bot stopped", zap.Any("stats", a.positions.Stats()))
	return runErr
}

// sink picks the queue policy for the source. A live feed drops the oldest
// message when the loop falls behind; a recording or a feed-clock run
// blocks instead, so every recorded message reaches the loop.
func (a *App) sink(ctx context.Context) ingestion.Sink {
	_, recorded := a.source.(*ingestion.FileSource)
	if !a.feedClock && !recorded {
		return a.queue.Push
	}
	return func(msg ingestion.Message) {
		// Only fails once ctx is done; the source stops on its own check.
		_ = a.queue.PushWait(ctx, msg)
	}
}

func (a *App) loop(ctx context.Context) error {
	exitTicker := time.NewTicker(a.cfg.Bot.ExitCheckInterval.Duration)
	defer exitTicker.Stop()
	cleanupTicker := time.NewTicker(a.cfg.Bot.CleanupInterval.Duration)
	defer cleanupTicker.Stop()

	msgs := a.queue.C()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			a.handleMessage(ctx, msg)
		case <-exitTicker.C:
			if a.feedClock {
				continue
			}
			a.afterBatch(ctx, a.checker.Sweep(context.WithoutCancel(ctx)))
		case <-cleanupTicker.C:
			a.cleanup(ctx)
		}
	}
}

// handleMessage runs one message through normalize, price, analyze and execute.
func (a *App) handleMessage(ctx context.Context, msg ingestion.Message) {
	a.metrics.RecordQueue(a.queue.Len(), a.queue.Dropped())
	if a.feedClock {
		a.feedTime.Store(msg.RecvUs)
	}

	res := a.normalizer.Normalize(msg.Data, msg.RecvUs)
	if fe, ok := res.Event.(*domain.FeedError); ok {
		a.metrics.RecordFeedError(string(fe.Reason))
		a.notifier.FeedError(string(fe.Reason), fe.Err)
		return
	}
	ev := res.Event

	var latencyMs *float64
	if res.Latency != nil {
		l := res.Latency.LatencyMs
		latencyMs = &l
	}
	a.metrics.RecordEvent(string(ev.Kind()), latencyMs)

	held := false
	if mint, price, ok := pricing.DerivePrice(ev); ok {
		a.positions.UpdatePrice(mint, price)
		held = a.positions.HasActivePosition(mint)
		a.ticks.Enqueue(domain.PriceTick{
			Mint:        mint,
			Price:       price,
			TimestampMs: msg.RecvUs / 1000,
			Source:      string(ev.Kind()),
		})
	}

	if a.feedClock && held {
		a.afterBatch(ctx, a.checker.Sweep(context.WithoutCancel(ctx)))
	}

	emitted := a.engine.Analyze(ev, res.Latency)
	if len(emitted) == 0 {
		return
	}
	start := time.Now()
	report := a.coordinator.Execute(context.WithoutCancel(ctx), emitted)
	a.metrics.RecordBatch(time.Since(start).Seconds())
	a.afterBatch(ctx, report)
}

func (a *App) afterBatch(ctx context.Context, report execution.Report) {
	if !report.PositionsChanged {
		return
	}
	a.saveSnapshot(context.WithoutCancel(ctx))
	a.updatePositionMetrics()
}

// cleanup prunes closed positions past retention, archiving them first
// when an archive is configured, and drops price history of idle mints
// that have no open position.
func (a *App) cleanup(ctx context.Context) {
	if evicted := a.prices.EvictIdle(a.cfg.Bot.PriceIdleTimeout.Duration, a.positions.HasActivePosition); len(evicted) > 0 {
		a.logger.Debug("evicted idle price history", zap.Int("mints", len(evicted)))
	}

	pruned := a.positions.CleanupClosed(a.cfg.Bot.ClosedRetentionDays)
	if len(pruned) == 0 {
		return
	}
	if a.deps.Archive != nil {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		err := a.deps.Archive.ArchivePositions(actx, pruned)
		cancel()
		if err != nil {
			a.metrics.RecordSinkError("archive")
			a.logger.Error("archive closed positions", zap.Int("count", len(pruned)), zap.Error(err))
		}
	}
	a.saveSnapshot(context.WithoutCancel(ctx))
}

func (a *App) restore(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	data, err := a.deps.State.Get(sctx, position.SnapshotKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load position snapshot: %w", err)
	}
	if err := a.positions.Restore(data); err != nil {
		return fmt.Errorf("restore position snapshot: %w", err)
	}
	a.logger.Info("restored positions",
		zap.Int("active", a.positions.ActiveCount()),
		zap.Int("closed", len(a.positions.ClosedPositions())),
	)
	return nil
}

func (a *App) saveSnapshot(ctx context.Context) {
	data, err := a.positions.Snapshot()
	if err != nil {
		a.logger.Error("encode position snapshot", zap.Error(err))
		return
	}
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := a.deps.State.Put(sctx, position.SnapshotKey, data); err != nil {
		a.metrics.RecordSinkError("state")
		a.logger.Error("save position snapshot", zap.Error(err))
	}
}

func (a *App) updatePositionMetrics() {
	if a.metrics == nil {
		return
	}
	a.metrics.UpdatePositions(a.positions.ActiveCount(), a.positions.TotalInvested(),
		a.positions.TotalPnL(), a.positions.DailyPnL())
}

// closedJournal appends every closed position to the trade journal.
type closedJournal struct {
	journal storage.TradeJournal
	logger  *zap.Logger
}

func (j *closedJournal) PositionOpened(*domain.Position) {}

func (j *closedJournal) PositionClosed(pos *domain.Position) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := j.journal.RecordClosedPosition(ctx, pos); err != nil {
		j.logger.Error("journal closed position", zap.String("mint", pos.Mint), zap.Error(err))
	}
}
