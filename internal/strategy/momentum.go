package strategy

import (
	"context"
	"fmt"

	"solana-dex-bot/internal/domain"
)

// MomentumStrategy buys a mint whose price rose by at least MinPriceChange
// over the last LookbackPeriods ticks, triggered by a buy on that mint.
type MomentumStrategy struct {
	Base
	params domain.MomentumParams
	bought boughtMarks
}

// NewMomentumStrategy creates a MomentumStrategy.
func NewMomentumStrategy(cfg domain.StrategyConfig, env Env) (*MomentumStrategy, error) {
	if cfg.Momentum == nil {
		return nil, ErrMissingMomentumParams
	}
	if cfg.Momentum.LookbackPeriods < 1 {
		return nil, fmt.Errorf("%w: lookback_periods must be positive", ErrInvalidParams)
	}
	return &MomentumStrategy{
		Base:   newBase(cfg, env),
		params: *cfg.Momentum,
	}, nil
}

func (s *MomentumStrategy) Initialize(context.Context) error {
	s.bought = make(boughtMarks)
	return nil
}

func (s *MomentumStrategy) Destroy() error {
	s.bought = nil
	return nil
}

// AnalyzeEvent emits a buy when the price change crosses the threshold.
func (s *MomentumStrategy) AnalyzeEvent(ev domain.DexEvent, latency *domain.LatencyInfo) []domain.TradeSignal {
	if s.bought == nil || s.env.Prices == nil {
		return nil
	}
	buy, ok := ExtractBuyEvent(ev, s.env.nowMs())
	if !ok || s.bought.has(buy.Mint) {
		return nil
	}
	if s.env.Positions != nil && s.env.Positions.HasActivePosition(buy.Mint) {
		return nil
	}

	change, ok := s.env.Prices.PriceChange(buy.Mint, s.params.LookbackPeriods)
	if !ok || change < s.params.MinPriceChange {
		return nil
	}

	sig := s.newSignal(domain.SignalBuy, buy.Mint, s.params.BuyAmountSol, domain.PriorityMedium,
		fmt.Sprintf("momentum: %.2f%% over %d ticks", change*100, s.params.LookbackPeriods))
	sig.Params = &domain.SignalParams{SourceEvent: ev, Latency: latency}
	s.bought.mark(buy.Mint)
	return []domain.TradeSignal{sig}
}

func (s *MomentumStrategy) CheckExitConditions(pos *domain.Position) *domain.TradeSignal {
	sig := s.CheckBaseExit(pos)
	if sig != nil {
		s.bought.clear(pos.Mint)
	}
	return sig
}

func (s *MomentumStrategy) OnTradeResult(sig domain.TradeSignal, res domain.TradeResult) {
	s.bought.settle(sig, res)
}

var _ Strategy = (*MomentumStrategy)(nil)
