// Package risk implements the pre-trade risk gate.
package risk

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"solana-dex-bot/internal/domain"
)

// ErrRejected is wrapped by every Rejection.
var ErrRejected = errors.New("rejected by risk gate")

// Reason classifies a rejection.
type Reason string

// Rejection reasons
const (
	ReasonEmergencyStop     Reason = "emergency_stop"
	ReasonMaxPositions      Reason = "max_positions"
	ReasonMaxInvestment     Reason = "max_investment"
	ReasonDailyLoss         Reason = "daily_loss"
	ReasonStrategyPositions Reason = "strategy_positions"
	ReasonTradeAmount       Reason = "trade_amount"
	ReasonLossPause         Reason = "loss_pause"
)

// Rejection is returned by Check when a signal must not be executed.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() error { return ErrRejected }

// Limits is the global risk envelope.
type Limits struct {
	MaxTotalPositions    int
	MaxTotalInvestment   float64 // SOL
	EmergencyStop        bool
	MaxDailyLoss         float64 // SOL, positive
	MaxConsecutiveLosses int     // 0 disables the loss pause
	PauseAfterLoss       time.Duration
}

// Book is the position state the gate reads at call time.
type Book interface {
	ActiveCount() int
	CountByStrategy(strategy string) int
	TotalInvested() float64
	DailyPnL() float64
	LossStreak() (count int, lastLossAt int64)
}

// Gate evaluates signals against the limits and the current book.
type Gate struct {
	limits     Limits
	book       Book
	strategies map[string]domain.StrategyConfig
	now        func() time.Time
	emergency  atomic.Bool
}

// NewGate creates a Gate. strategies supplies per-strategy caps by name.
func NewGate(limits Limits, book Book, strategies []domain.StrategyConfig, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	byName := make(map[string]domain.StrategyConfig, len(strategies))
	for _, s := range strategies {
		byName[s.Name] = s
	}
	g := &Gate{
		limits:     limits,
		book:       book,
		strategies: byName,
		now:        now,
	}
	g.emergency.Store(limits.EmergencyStop)
	return g
}

// SetEmergencyStop toggles the kill switch. Safe for concurrent use.
func (g *Gate) SetEmergencyStop(on bool) {
	g.emergency.Store(on)
}

// EmergencyStopped reports the kill switch state.
func (g *Gate) EmergencyStopped() bool {
	return g.emergency.Load()
}

// Check returns nil when sig may be executed, otherwise a *Rejection.
func (g *Gate) Check(sig domain.TradeSignal) error {
	if g.emergency.Load() {
		return reject(ReasonEmergencyStop, "emergency stop is active")
	}

	if g.limits.MaxDailyLoss > 0 {
		daily := lamports(g.book.DailyPnL())
		floor := lamports(g.limits.MaxDailyLoss).Neg()
		if daily.LessThan(floor) {
			return reject(ReasonDailyLoss, fmt.Sprintf("daily pnl %s below -%s", daily, lamports(g.limits.MaxDailyLoss)))
		}
	}

	if sig.Type != domain.SignalBuy {
		return nil
	}
	return g.checkBuy(sig)
}

func (g *Gate) checkBuy(sig domain.TradeSignal) error {
	if active := g.book.ActiveCount(); active >= g.limits.MaxTotalPositions {
		return reject(ReasonMaxPositions, fmt.Sprintf("%d active positions, limit %d", active, g.limits.MaxTotalPositions))
	}

	invested := lamports(g.book.TotalInvested())
	after := invested.Add(lamports(sig.Amount))
	limit := lamports(g.limits.MaxTotalInvestment)
	if after.GreaterThan(limit) {
		return reject(ReasonMaxInvestment, fmt.Sprintf("invested %s + %s exceeds %s", invested, lamports(sig.Amount), limit))
	}

	if cfg, ok := g.strategies[sig.Strategy]; ok {
		if cfg.MaxPositions > 0 {
			if n := g.book.CountByStrategy(sig.Strategy); n >= cfg.MaxPositions {
				return reject(ReasonStrategyPositions, fmt.Sprintf("strategy %s holds %d positions, limit %d", sig.Strategy, n, cfg.MaxPositions))
			}
		}
		amount := lamports(sig.Amount)
		if cfg.MinTradeAmount > 0 && amount.LessThan(lamports(cfg.MinTradeAmount)) {
			return reject(ReasonTradeAmount, fmt.Sprintf("amount %s below minimum %s", amount, lamports(cfg.MinTradeAmount)))
		}
		if cfg.MaxTradeAmount > 0 && amount.GreaterThan(lamports(cfg.MaxTradeAmount)) {
			return reject(ReasonTradeAmount, fmt.Sprintf("amount %s above maximum %s", amount, lamports(cfg.MaxTradeAmount)))
		}
	}

	if g.limits.MaxConsecutiveLosses > 0 {
		streak, lastLossAt := g.book.LossStreak()
		if streak >= g.limits.MaxConsecutiveLosses {
			resumeAt := lastLossAt + g.limits.PauseAfterLoss.Milliseconds()
			if g.now().UnixMilli() < resumeAt {
				return reject(ReasonLossPause, fmt.Sprintf("%d consecutive losses, paused until %s",
					streak, time.UnixMilli(resumeAt).UTC().Format(time.RFC3339)))
			}
		}
	}
	return nil
}

func reject(reason Reason, detail string) *Rejection {
	return &Rejection{Reason: reason, Detail: detail}
}

// lamports rounds a SOL amount to lamport precision.
func lamports(sol float64) decimal.Decimal {
	return decimal.NewFromFloat(sol).Round(9)
}
