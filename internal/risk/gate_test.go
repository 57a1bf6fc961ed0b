package risk

import (
	"errors"
	"testing"
	"time"

	"solana-dex-bot/internal/domain"
)

type fakeBook struct {
	active     int
	byStrategy map[string]int
	invested   float64
	daily      float64
	streak     int
	lastLossAt int64
}

func (b *fakeBook) ActiveCount() int             { return b.active }
func (b *fakeBook) CountByStrategy(s string) int { return b.byStrategy[s] }
func (b *fakeBook) TotalInvested() float64       { return b.invested }
func (b *fakeBook) DailyPnL() float64            { return b.daily }
func (b *fakeBook) LossStreak() (int, int64)     { return b.streak, b.lastLossAt }

func defaultLimits() Limits {
	return Limits{
		MaxTotalPositions:  5,
		MaxTotalInvestment: 0.3,
		MaxDailyLoss:       1,
	}
}

func buy(amount float64) domain.TradeSignal {
	return domain.TradeSignal{Type: domain.SignalBuy, Mint: "M", Amount: amount, Strategy: "s"}
}

func sell() domain.TradeSignal {
	return domain.TradeSignal{Type: domain.SignalSell, Mint: "M", Amount: domain.SellAll, Strategy: "s"}
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	if err == nil {
		return ""
	}
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *Rejection, got %T", err)
	}
	if !errors.Is(err, ErrRejected) {
		t.Fatal("rejection should wrap ErrRejected")
	}
	return rej.Reason
}

func TestGate_InvestmentBoundary(t *testing.T) {
	book := &fakeBook{invested: 0.2}
	g := NewGate(defaultLimits(), book, nil, nil)

	// 0.2 + 0.1 == 0.3 exactly; float64 addition would overshoot.
	if err := g.Check(buy(0.1)); err != nil {
		t.Fatalf("buy reaching the limit exactly should pass: %v", err)
	}
	if r := reasonOf(t, g.Check(buy(0.1+1e-9))); r != ReasonMaxInvestment {
		t.Fatalf("one lamport over: reason = %q, want %q", r, ReasonMaxInvestment)
	}
}

func TestGate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		limits func(*Limits)
		book   fakeBook
		sig    domain.TradeSignal
		want   Reason
	}{
		{name: "ok", sig: buy(0.01)},
		{name: "emergency stop blocks buys", limits: func(l *Limits) { l.EmergencyStop = true }, sig: buy(0.01), want: ReasonEmergencyStop},
		{name: "emergency stop blocks sells", limits: func(l *Limits) { l.EmergencyStop = true }, sig: sell(), want: ReasonEmergencyStop},
		{name: "max positions", book: fakeBook{active: 5}, sig: buy(0.01), want: ReasonMaxPositions},
		{name: "max positions ignores sells", book: fakeBook{active: 5, invested: 10}, sig: sell()},
		{name: "daily loss", book: fakeBook{daily: -1.000000001}, sig: buy(0.01), want: ReasonDailyLoss},
		{name: "daily loss at floor", book: fakeBook{daily: -1}, sig: buy(0.01)},
		{name: "strategy positions", book: fakeBook{byStrategy: map[string]int{"s": 1}}, sig: buy(0.01), want: ReasonStrategyPositions},
		{name: "below min trade", sig: buy(0.001), want: ReasonTradeAmount},
		{name: "above max trade", sig: buy(0.06), want: ReasonTradeAmount},
		{
			name:   "loss pause",
			limits: func(l *Limits) { l.MaxConsecutiveLosses = 3; l.PauseAfterLoss = time.Hour },
			book:   fakeBook{streak: 3, lastLossAt: 1_000_000},
			sig:    buy(0.01),
			want:   ReasonLossPause,
		},
		{
			name:   "loss pause elapsed",
			limits: func(l *Limits) { l.MaxConsecutiveLosses = 3; l.PauseAfterLoss = time.Minute },
			book:   fakeBook{streak: 3, lastLossAt: 1_000_000},
			sig:    buy(0.01),
		},
	}

	strategies := []domain.StrategyConfig{{Name: "s", MaxPositions: 1, MinTradeAmount: 0.005, MaxTradeAmount: 0.05}}
	now := func() time.Time { return time.UnixMilli(1_000_000 + 30*60*1000) }

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := defaultLimits()
			if tt.limits != nil {
				tt.limits(&limits)
			}
			book := tt.book
			g := NewGate(limits, &book, strategies, now)
			if got := reasonOf(t, g.Check(tt.sig)); got != tt.want {
				t.Errorf("reason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGate_EmergencyToggle(t *testing.T) {
	g := NewGate(defaultLimits(), &fakeBook{}, nil, nil)
	g.SetEmergencyStop(true)
	if !g.EmergencyStopped() {
		t.Fatal("expected emergency stop")
	}
	if r := reasonOf(t, g.Check(buy(0.01))); r != ReasonEmergencyStop {
		t.Fatalf("reason = %q", r)
	}
	g.SetEmergencyStop(false)
	if err := g.Check(buy(0.01)); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}
