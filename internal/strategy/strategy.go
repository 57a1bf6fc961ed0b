package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"solana-dex-bot/internal/domain"
)

// Strategy turns normalized events into trade signals and decides exits.
// All methods are called from the single processing loop.
type Strategy interface {
	// Name returns the instance name; positions opened by this strategy carry it.
	Name() string

	// Config returns the configuration the instance was built from.
	Config() domain.StrategyConfig

	// Initialize allocates per-instance state. Called once before any event.
	Initialize(ctx context.Context) error

	// AnalyzeEvent returns zero or more signals for an event. Must not block.
	AnalyzeEvent(ev domain.DexEvent, latency *domain.LatencyInfo) []domain.TradeSignal

	// CheckExitConditions returns a sell signal for pos, or nil.
	CheckExitConditions(pos *domain.Position) *domain.TradeSignal

	// OnTradeResult is called after every signal this strategy emitted was handled,
	// including rejected and failed ones.
	OnTradeResult(sig domain.TradeSignal, res domain.TradeResult)

	// Destroy releases per-instance state.
	Destroy() error
}

// PriceReader is the read side of the shared price cache.
type PriceReader interface {
	CurrentPrice(mint string) (float64, bool)
	PriceChange(mint string, periods int) (float64, bool)
}

// PositionReader is the read side of the position manager.
type PositionReader interface {
	HasActivePosition(mint string) bool
}

// Env is the shared context strategies evaluate against.
type Env struct {
	Prices    PriceReader
	Positions PositionReader
	Now       func() time.Time // nil means time.Now
	Logger    *zap.Logger      // nil means no logging
}

func (e Env) withDefaults() Env {
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	return e
}

func (e Env) nowMs() int64 {
	return e.Now().UnixMilli()
}
