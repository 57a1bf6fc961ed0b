// Package execution routes signal batches through the risk gate and an
// executor, and reconciles results into the position manager.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/idhash"
	"solana-dex-bot/internal/observability"
	"solana-dex-bot/internal/position"
	"solana-dex-bot/internal/risk"
	"solana-dex-bot/internal/strategy"
	"solana-dex-bot/internal/tradeapi"
)

// DefaultTimeout bounds a single executor call.
const DefaultTimeout = 30 * time.Second

// ErrUnreconciled is returned when a successful buy reports neither a price nor a size.
var ErrUnreconciled = errors.New("cannot reconcile trade result")

// Gate decides whether a signal may execute.
type Gate interface {
	Check(sig domain.TradeSignal) error
}

// Positions is the position manager surface the coordinator mutates.
type Positions interface {
	OpenPosition(pos *domain.Position) *domain.Position
	ClosePosition(mint string, res domain.TradeResult) (*domain.Position, error)
	GetPosition(mint string) (*domain.Position, bool)
	MarkClosing(mint string) error
	Reactivate(mint string) error
}

// ResultNotifier delivers results back to the emitting strategy.
type ResultNotifier interface {
	NotifyResult(s strategy.Strategy, sig domain.TradeSignal, res domain.TradeResult)
}

// Journal persists one record per executed signal.
type Journal interface {
	RecordExecution(ctx context.Context, rec *domain.ExecutionRecord) error
}

// Notifier observes rejected and failed signals.
type Notifier interface {
	SignalRejected(sig domain.TradeSignal, err error)
	ExecutionFailed(sig domain.TradeSignal, res domain.TradeResult)
}

// Report summarizes one batch.
type Report struct {
	Executed         int
	Rejected         int
	Failed           int
	PositionsChanged bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithResolver sets the parameter resolver.
func WithResolver(r *ParamResolver) Option {
	return func(c *Coordinator) {
		c.resolver = r
	}
}

// WithPrices sets the cache used to price fills that report no price.
func WithPrices(p PriceSource) Option {
	return func(c *Coordinator) {
		c.prices = p
	}
}

// WithResults sets where strategy callbacks are delivered.
func WithResults(r ResultNotifier) Option {
	return func(c *Coordinator) {
		c.results = r
	}
}

// WithJournal sets the execution journal.
func WithJournal(j Journal) Option {
	return func(c *Coordinator) {
		c.journal = j
	}
}

// WithNotifier sets the rejection and failure observer.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l.Named("coordinator")
	}
}

// WithTimeout bounds each executor call.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithDryRun marks journal records as simulated.
func WithDryRun(on bool) Option {
	return func(c *Coordinator) {
		c.dryRun = on
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// Coordinator executes signal batches one signal at a time.
// It is not safe for concurrent use; the processing loop owns it.
type Coordinator struct {
	gate      Gate
	executor  Executor
	positions Positions

	resolver *ParamResolver
	prices   PriceSource
	results  ResultNotifier
	journal  Journal
	notifier Notifier
	metrics  *observability.Metrics
	logger   *zap.Logger
	timeout  time.Duration
	dryRun   bool
	now      func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(gate Gate, executor Executor, positions Positions, opts ...Option) *Coordinator {
	c := &Coordinator{
		gate:      gate,
		executor:  executor,
		positions: positions,
		resolver:  NewParamResolver(nil),
		logger:    zap.NewNop(),
		timeout:   DefaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs a batch ordered by priority, high first, stable otherwise.
// One failing signal never stops the rest of the batch.
func (c *Coordinator) Execute(ctx context.Context, batch []strategy.Emitted) Report {
	var report Report
	if len(batch) == 0 {
		return report
	}

	ordered := make([]strategy.Emitted, len(batch))
	copy(ordered, batch)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Signal.Priority.Rank() > ordered[j].Signal.Priority.Rank()
	})

	for _, em := range ordered {
		c.process(ctx, em, &report)
	}
	return report
}

func (c *Coordinator) process(ctx context.Context, em strategy.Emitted, report *Report) {
	sig := em.Signal
	log := c.logger.With(
		zap.String("signal_id", sig.ID),
		zap.String("strategy", sig.Strategy),
		zap.String("type", string(sig.Type)),
		zap.String("mint", sig.Mint),
	)

	if err := c.gate.Check(sig); err != nil {
		report.Rejected++
		reason := "error"
		var rej *risk.Rejection
		if errors.As(err, &rej) {
			reason = string(rej.Reason)
		}
		c.metrics.RecordRejection(reason)
		log.Info("signal rejected", zap.String("reason", reason), zap.Error(err))
		if c.notifier != nil {
			c.notifier.SignalRejected(sig, err)
		}
		c.notifyStrategy(em, domain.FailedResult(err.Error(), c.now().UnixMilli()))
		return
	}

	order, err := c.prepare(ctx, sig)
	if err != nil {
		res := domain.FailedResult(err.Error(), c.now().UnixMilli())
		c.fail(log, sig, res, err, report)
		c.record(ctx, sig, res)
		c.notifyStrategy(em, res)
		return
	}

	if sig.Type == domain.SignalSell {
		_ = c.positions.MarkClosing(sig.Mint)
	}

	start := time.Now()
	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	res, err := c.executor.Execute(execCtx, order)
	cancel()
	c.metrics.RecordExecution(string(sig.Type), err == nil && res.Success, time.Since(start).Seconds())

	if err == nil && !res.Success {
		err = fmt.Errorf("%w: %s", tradeapi.ErrTradeRejected, res.Error)
	}
	if err != nil {
		if res.Error == "" {
			res.Error = err.Error()
		}
		res.Success = false
		if sig.Type == domain.SignalSell {
			_ = c.positions.Reactivate(sig.Mint)
		}
		c.fail(log, sig, res, err, report)
	} else {
		report.Executed++
		if rerr := c.reconcile(sig, order, res); rerr != nil {
			log.Error("reconcile failed", zap.String("signature", res.Signature), zap.Error(rerr))
			if c.notifier != nil {
				failed := res
				failed.Error = rerr.Error()
				c.notifier.ExecutionFailed(sig, failed)
			}
		} else {
			report.PositionsChanged = true
		}
		log.Info("signal executed",
			zap.String("signature", res.Signature),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	c.record(ctx, sig, res)
	c.notifyStrategy(em, res)
}

// prepare resolves exchange parameters and, for sells, the live position.
func (c *Coordinator) prepare(ctx context.Context, sig domain.TradeSignal) (Order, error) {
	order := Order{Signal: sig}

	if sig.Type == domain.SignalSell {
		pos, ok := c.positions.GetPosition(sig.Mint)
		if !ok {
			return order, fmt.Errorf("sell %s: %w", sig.Mint, position.ErrPositionNotFound)
		}
		order.Position = pos
		if params, ok := paramsFromPosition(pos); ok && sig.SourceEvent() == nil {
			p, err := c.resolver.Complete(ctx, sig.Mint, params)
			if err != nil {
				return order, err
			}
			order.Params = p
			return order, nil
		}
	}

	p, err := c.resolver.Resolve(ctx, sig.Mint, sig.SourceEvent())
	if err != nil {
		return order, err
	}
	order.Params = p
	return order, nil
}

// reconcile applies a successful result to the position manager.
func (c *Coordinator) reconcile(sig domain.TradeSignal, order Order, res domain.TradeResult) error {
	if sig.Type == domain.SignalSell {
		if _, err := c.positions.ClosePosition(sig.Mint, res); err != nil {
			return err
		}
		return nil
	}

	var price, amount float64
	if res.ExecutedPrice != nil {
		price = *res.ExecutedPrice
	}
	if res.ExecutedAmount != nil {
		amount = *res.ExecutedAmount
	}
	if price <= 0 && amount > 0 {
		price = sig.Amount / amount
	}
	if price <= 0 && c.prices != nil {
		price, _ = c.prices.CurrentPrice(sig.Mint)
	}
	if amount <= 0 && price > 0 {
		amount = sig.Amount / price
	}
	if price <= 0 || amount <= 0 {
		return fmt.Errorf("%w: buy %s", ErrUnreconciled, sig.Mint)
	}

	md := map[string]string{
		metaSignalID:    sig.ID,
		metaEntryReason: sig.Reason,
	}
	paramsToMetadata(order.Params, md)

	c.positions.OpenPosition(&domain.Position{
		Mint:             sig.Mint,
		Amount:           amount,
		EntryPrice:       price,
		EntryTime:        res.ExecutedAt,
		EntryTxSignature: res.Signature,
		Strategy:         sig.Strategy,
		InvestedSol:      sig.Amount,
		Metadata:         md,
	})
	return nil
}

func (c *Coordinator) fail(log *zap.Logger, sig domain.TradeSignal, res domain.TradeResult, err error, report *Report) {
	report.Failed++
	log.Warn("signal execution failed", zap.Error(err))
	if c.notifier != nil {
		c.notifier.ExecutionFailed(sig, res)
	}
}

func (c *Coordinator) record(ctx context.Context, sig domain.TradeSignal, res domain.TradeResult) {
	if c.journal == nil {
		return
	}
	rec := &domain.ExecutionRecord{
		ExecutionID:     idhash.ComputeExecutionID(sig.ID, string(sig.Type), sig.Mint, res.ExecutedAt),
		SignalID:        sig.ID,
		Strategy:        sig.Strategy,
		Mint:            sig.Mint,
		Side:            sig.Type,
		RequestedAmount: sig.Amount,
		Reason:          sig.Reason,
		Priority:        sig.Priority,
		Success:         res.Success,
		Signature:       res.Signature,
		Error:           res.Error,
		ExecutedAmount:  res.ExecutedAmount,
		ExecutedPrice:   res.ExecutedPrice,
		Fee:             res.Fee,
		DryRun:          c.dryRun,
		ExecutedAt:      res.ExecutedAt,
	}
	if err := c.journal.RecordExecution(ctx, rec); err != nil {
		c.metrics.RecordSinkError("journal")
		c.logger.Error("journal execution failed", zap.String("signal_id", sig.ID), zap.Error(err))
	}
}

func (c *Coordinator) notifyStrategy(em strategy.Emitted, res domain.TradeResult) {
	if c.results == nil || em.Strategy == nil {
		return
	}
	c.results.NotifyResult(em.Strategy, em.Signal, res)
}
