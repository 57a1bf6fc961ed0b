package strategy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"solana-dex-bot/internal/domain"
)

// Base carries configuration, shared context and the generic exit policy.
// Concrete strategies embed it.
type Base struct {
	cfg domain.StrategyConfig
	env Env
}

func newBase(cfg domain.StrategyConfig, env Env) Base {
	return Base{cfg: cfg, env: env.withDefaults()}
}

// Name returns the instance name.
func (b *Base) Name() string { return b.cfg.Name }

// Config returns the instance configuration.
func (b *Base) Config() domain.StrategyConfig { return b.cfg }

// Initialize is a no-op for strategies without state.
func (b *Base) Initialize(context.Context) error { return nil }

// Destroy is a no-op for strategies without state.
func (b *Base) Destroy() error { return nil }

// OnTradeResult is a no-op by default.
func (b *Base) OnTradeResult(domain.TradeSignal, domain.TradeResult) {}

// PnLRatio returns (price - entry) / entry using the latest cached price,
// falling back to the ratio stored on the position.
func (b *Base) PnLRatio(pos *domain.Position) (float64, bool) {
	if pos.EntryPrice > 0 && b.env.Prices != nil {
		if price, ok := b.env.Prices.CurrentPrice(pos.Mint); ok {
			return (price - pos.EntryPrice) / pos.EntryPrice, true
		}
	}
	if pos.PnLRatio != nil {
		return *pos.PnLRatio, true
	}
	return 0, false
}

// CheckBaseExit applies take-profit and stop-loss.
// While the minimum hold time has not elapsed no exit fires; the position is
// re-evaluated on the next sweep.
func (b *Base) CheckBaseExit(pos *domain.Position) *domain.TradeSignal {
	ratio, ok := b.PnLRatio(pos)
	if !ok {
		return nil
	}

	if b.cfg.MinHoldTimeMs != nil && b.env.nowMs()-pos.EntryTime < *b.cfg.MinHoldTimeMs {
		return nil
	}

	if tp := b.cfg.TakeProfitRatio; tp != nil && ratio >= *tp {
		sig := b.newSignal(domain.SignalSell, pos.Mint, domain.SellAll, domain.PriorityHigh,
			fmt.Sprintf("take profit: pnl %.2f%% >= %.2f%%", ratio*100, *tp*100))
		return &sig
	}
	if sl := b.cfg.StopLossRatio; sl != nil && ratio <= *sl {
		sig := b.newSignal(domain.SignalSell, pos.Mint, domain.SellAll, domain.PriorityHigh,
			fmt.Sprintf("stop loss: pnl %.2f%% <= %.2f%%", ratio*100, *sl*100))
		return &sig
	}
	return nil
}

func (b *Base) newSignal(typ domain.SignalType, mint string, amount float64, prio domain.Priority, reason string) domain.TradeSignal {
	sig := domain.TradeSignal{
		ID:        uuid.NewString(),
		Type:      typ,
		Mint:      mint,
		Amount:    amount,
		Reason:    reason,
		Priority:  prio,
		Strategy:  b.cfg.Name,
		CreatedAt: b.env.nowMs(),
	}
	if b.cfg.SlippageBps > 0 {
		bps := b.cfg.SlippageBps
		sig.SlippageBps = &bps
	}
	return sig
}

// boughtMarks remembers mints a strategy instance already bought.
// A nil set (before Initialize or after Destroy) reports nothing as marked.
type boughtMarks map[string]struct{}

func (m boughtMarks) has(mint string) bool {
	_, ok := m[mint]
	return ok
}

func (m boughtMarks) mark(mint string) {
	if m != nil {
		m[mint] = struct{}{}
	}
}

func (m boughtMarks) clear(mint string) {
	delete(m, mint)
}

// settle updates marks after a trade result: a failed buy frees the mint for
// another attempt, a successful sell ends the holding.
func (m boughtMarks) settle(sig domain.TradeSignal, res domain.TradeResult) {
	switch {
	case sig.Type == domain.SignalBuy && !res.Success:
		m.clear(sig.Mint)
	case sig.Type == domain.SignalSell && res.Success:
		m.clear(sig.Mint)
	}
}
