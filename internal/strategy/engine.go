package strategy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/observability"
)

// Emitted pairs a signal with the strategy instance that produced it.
type Emitted struct {
	Strategy Strategy
	Signal   domain.TradeSignal
}

// Engine fans events out to strategies in configuration order.
// A failing or panicking strategy is isolated from the others.
type Engine struct {
	strategies []Strategy
	byName     map[string]Strategy
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewEngine creates an Engine over strategies.
func NewEngine(strategies []Strategy, logger *zap.Logger, metrics *observability.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	return &Engine{
		strategies: strategies,
		byName:     byName,
		logger:     logger.Named("strategy"),
		metrics:    metrics,
	}
}

// Strategies returns the strategies in evaluation order.
func (e *Engine) Strategies() []Strategy {
	return e.strategies
}

// ByName returns the strategy owning positions tagged with name.
func (e *Engine) ByName(name string) (Strategy, bool) {
	s, ok := e.byName[name]
	return s, ok
}

// InitializeAll initializes every strategy, stopping at the first error.
func (e *Engine) InitializeAll(ctx context.Context) error {
	for _, s := range e.strategies {
		if err := e.guard(s, "initialize", func() error { return s.Initialize(ctx) }); err != nil {
			return fmt.Errorf("initialize %s: %w", s.Name(), err)
		}
	}
	return nil
}

// DestroyAll tears down every strategy and joins their errors.
func (e *Engine) DestroyAll() error {
	var errs []error
	for _, s := range e.strategies {
		if err := e.guard(s, "destroy", s.Destroy); err != nil {
			errs = append(errs, fmt.Errorf("destroy %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Analyze runs ev through every strategy and collects their signals.
func (e *Engine) Analyze(ev domain.DexEvent, latency *domain.LatencyInfo) []Emitted {
	var out []Emitted
	for _, s := range e.strategies {
		var sigs []domain.TradeSignal
		err := e.guard(s, "analyze", func() error {
			sigs = s.AnalyzeEvent(ev, latency)
			return nil
		})
		if err != nil {
			continue
		}
		for _, sig := range sigs {
			if sig.Strategy == "" {
				sig.Strategy = s.Name()
			}
			e.metrics.RecordSignal(s.Name(), string(sig.Type))
			out = append(out, Emitted{Strategy: s, Signal: sig})
		}
	}
	return out
}

// CheckExit asks s for an exit signal on pos.
func (e *Engine) CheckExit(s Strategy, pos *domain.Position) *domain.TradeSignal {
	var sig *domain.TradeSignal
	_ = e.guard(s, "check_exit", func() error {
		sig = s.CheckExitConditions(pos)
		return nil
	})
	if sig != nil {
		if sig.Strategy == "" {
			sig.Strategy = s.Name()
		}
		e.metrics.RecordSignal(s.Name(), string(sig.Type))
	}
	return sig
}

// NotifyResult delivers a trade result to s.
func (e *Engine) NotifyResult(s Strategy, sig domain.TradeSignal, res domain.TradeResult) {
	_ = e.guard(s, "trade_result", func() error {
		s.OnTradeResult(sig, res)
		return nil
	})
}

// guard runs fn, converting a panic into an error and logging failures.
func (e *Engine) guard(s Strategy, hook string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", hook, r)
		}
		if err != nil {
			e.metrics.RecordStrategyError(s.Name(), hook)
			e.logger.Error("strategy hook failed",
				zap.String("strategy", s.Name()),
				zap.String("hook", hook),
				zap.Error(err),
			)
		}
	}()
	return fn()
}
