package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-dex-bot/internal/domain"
)

// ConsecutiveBuyStrategy buys a mint after a burst of closely spaced buys
// whose total size crosses a threshold.
type ConsecutiveBuyStrategy struct {
	Base
	params domain.ConsecutiveBuyParams

	window *buyWindow
	bought boughtMarks
}

// NewConsecutiveBuyStrategy creates a ConsecutiveBuyStrategy.
// Per-mint state is allocated by Initialize.
func NewConsecutiveBuyStrategy(cfg domain.StrategyConfig, env Env) (*ConsecutiveBuyStrategy, error) {
	if cfg.ConsecutiveBuy == nil {
		return nil, ErrMissingConsecutiveBuyParams
	}
	p := *cfg.ConsecutiveBuy
	if p.Count < 1 {
		return nil, fmt.Errorf("%w: count must be positive", ErrInvalidParams)
	}
	if p.TimeWindowSeconds <= 0 {
		return nil, fmt.Errorf("%w: time_window_seconds must be positive", ErrInvalidParams)
	}
	return &ConsecutiveBuyStrategy{
		Base:   newBase(cfg, env),
		params: p,
	}, nil
}

// Initialize allocates the buy window and bought-mark set.
func (s *ConsecutiveBuyStrategy) Initialize(context.Context) error {
	retention := s.params.RetentionSeconds
	if retention <= 0 {
		retention = s.params.TimeWindowSeconds
	}
	s.window = newBuyWindow(int64(retention * 1000))
	s.bought = make(boughtMarks)
	return nil
}

// Destroy drops all per-mint state.
func (s *ConsecutiveBuyStrategy) Destroy() error {
	s.window = nil
	s.bought = nil
	return nil
}

// AnalyzeEvent records buys and emits at most one buy signal per event.
func (s *ConsecutiveBuyStrategy) AnalyzeEvent(ev domain.DexEvent, latency *domain.LatencyInfo) []domain.TradeSignal {
	if s.window == nil {
		return nil
	}

	buy, ok := ExtractBuyEvent(ev, s.env.nowMs())
	if !ok || buy.Mint == "" {
		return nil
	}

	entries := s.window.add(buy)
	total, ok := s.consecutiveTotal(entries)
	if !ok {
		return nil
	}

	if s.bought.has(buy.Mint) {
		return nil
	}
	if s.env.Positions != nil && s.env.Positions.HasActivePosition(buy.Mint) {
		return nil
	}

	sig := s.newSignal(domain.SignalBuy, buy.Mint, s.params.BuyAmountSol, domain.PriorityMedium,
		fmt.Sprintf("%d consecutive buys totaling %.4f", s.params.Count, total))
	sig.Params = &domain.SignalParams{SourceEvent: ev, Latency: latency}

	s.bought.mark(buy.Mint)
	s.env.Logger.Debug("consecutive buy pattern",
		zap.String("strategy", s.Name()),
		zap.String("mint", buy.Mint),
		zap.Float64("total", total),
	)
	return []domain.TradeSignal{sig}
}

// consecutiveTotal checks the most recent Count entries for the gap limit and
// the amount threshold, returning their sum.
func (s *ConsecutiveBuyStrategy) consecutiveTotal(entries []BuyEvent) (float64, bool) {
	n := s.params.Count
	if len(entries) < n {
		return 0, false
	}

	maxGapMs := int64(s.params.TimeWindowSeconds * 1000)
	recent := entries[len(entries)-n:]

	total := recent[0].Amount
	for i := 1; i < len(recent); i++ {
		if recent[i].Timestamp-recent[i-1].Timestamp > maxGapMs {
			return 0, false
		}
		total += recent[i].Amount
	}
	if total < s.params.TotalAmountThreshold {
		return 0, false
	}
	return total, true
}

// CheckExitConditions sells everything once the target profit is reached,
// otherwise applies the base exit policy.
func (s *ConsecutiveBuyStrategy) CheckExitConditions(pos *domain.Position) *domain.TradeSignal {
	if s.params.TargetProfitRatio > 0 {
		if ratio, ok := s.PnLRatio(pos); ok && ratio >= s.params.TargetProfitRatio {
			sig := s.newSignal(domain.SignalSell, pos.Mint, domain.SellAll, domain.PriorityHigh,
				fmt.Sprintf("target profit: pnl %.2f%% >= %.2f%%", ratio*100, s.params.TargetProfitRatio*100))
			s.bought.clear(pos.Mint)
			return &sig
		}
	}

	sig := s.CheckBaseExit(pos)
	if sig != nil {
		s.bought.clear(pos.Mint)
	}
	return sig
}

// OnTradeResult releases the mark after a failed buy or a completed sell.
func (s *ConsecutiveBuyStrategy) OnTradeResult(sig domain.TradeSignal, res domain.TradeResult) {
	s.bought.settle(sig, res)
}

// IsMarked reports whether mint carries the bought-mark.
func (s *ConsecutiveBuyStrategy) IsMarked(mint string) bool {
	return s.bought.has(mint)
}

// WindowSize returns the number of buys currently retained for mint.
func (s *ConsecutiveBuyStrategy) WindowSize(mint string) int {
	if s.window == nil {
		return 0
	}
	return s.window.len(mint)
}

var _ Strategy = (*ConsecutiveBuyStrategy)(nil)
