// Package exitcheck sweeps open positions for exit signals.
package exitcheck

import (
	"context"

	"go.uber.org/zap"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/execution"
	"solana-dex-bot/internal/strategy"
)

// Positions lists the positions to sweep.
type Positions interface {
	ActivePositions() []*domain.Position
}

// Strategies resolves the owner of a position and asks it for an exit.
type Strategies interface {
	ByName(name string) (strategy.Strategy, bool)
	CheckExit(s strategy.Strategy, pos *domain.Position) *domain.TradeSignal
}

// Executor runs a signal batch.
type Executor interface {
	Execute(ctx context.Context, batch []strategy.Emitted) execution.Report
}

// Checker evaluates exit conditions of every active position.
type Checker struct {
	positions  Positions
	strategies Strategies
	executor   Executor
	logger     *zap.Logger
}

// New creates a Checker.
func New(positions Positions, strategies Strategies, executor Executor, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		positions:  positions,
		strategies: strategies,
		executor:   executor,
		logger:     logger.Named("exitcheck"),
	}
}

// Sweep checks each active position against its owning strategy. Every exit
// signal is executed as its own single-signal batch.
// Positions whose sell is already in flight are skipped.
func (c *Checker) Sweep(ctx context.Context) execution.Report {
	var total execution.Report
	for _, pos := range c.positions.ActivePositions() {
		if pos.Status != domain.PositionActive {
			continue
		}
		s, ok := c.strategies.ByName(pos.Strategy)
		if !ok {
			c.logger.Warn("position has no owning strategy",
				zap.String("mint", pos.Mint),
				zap.String("strategy", pos.Strategy),
			)
			continue
		}
		sig := c.strategies.CheckExit(s, pos)
		if sig == nil {
			continue
		}

		c.logger.Info("exit signal",
			zap.String("mint", pos.Mint),
			zap.String("strategy", s.Name()),
			zap.String("reason", sig.Reason),
		)
		r := c.executor.Execute(ctx, []strategy.Emitted{{Strategy: s, Signal: *sig}})
		total.Executed += r.Executed
		total.Rejected += r.Rejected
		total.Failed += r.Failed
		total.PositionsChanged = total.PositionsChanged || r.PositionsChanged
	}
	return total
}
