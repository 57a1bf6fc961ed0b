package pricing

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"solana-dex-bot/internal/domain"
)

func TestCache_CurrentPriceAndCap(t *testing.T) {
	c := NewCache()

	if _, ok := c.CurrentPrice("M"); ok {
		t.Fatal("empty cache should have no price")
	}

	for i := 1; i <= MaxTicks+5; i++ {
		c.RecordTick("M", float64(i))
	}

	h := c.History("M")
	if len(h) != MaxTicks {
		t.Fatalf("history length = %d, want %d", len(h), MaxTicks)
	}
	if h[0] != 6 {
		t.Errorf("oldest tick = %v, want 6 (oldest dropped first)", h[0])
	}
	if p, _ := c.CurrentPrice("M"); p != float64(MaxTicks+5) {
		t.Errorf("current price = %v", p)
	}
}

func TestCache_PriceChange(t *testing.T) {
	c := NewCacheWithLimit(10)
	c.RecordTick("M", 1.0)
	c.RecordTick("M", 1.5)
	c.RecordTick("M", 2.0)

	if _, ok := c.PriceChange("M", 3); ok {
		t.Error("3 periods back needs 4 ticks")
	}
	if _, ok := c.PriceChange("M", 0); ok {
		t.Error("zero periods is undefined")
	}
	got, ok := c.PriceChange("M", 2)
	if !ok || got != 1.0 {
		t.Errorf("PriceChange(2) = %v, %v; want 1.0", got, ok)
	}
	got, ok = c.PriceChange("M", 1)
	if !ok || math.Abs(got-1.0/3.0) > 1e-12 {
		t.Errorf("PriceChange(1) = %v", got)
	}

	c.RecordTick("Z", 0)
	c.RecordTick("Z", 1)
	if _, ok := c.PriceChange("Z", 1); ok {
		t.Error("zero reference price is undefined")
	}
}

func TestCache_EvictIdle(t *testing.T) {
	now := time.UnixMilli(0)
	c := NewCache(WithClock(func() time.Time { return now }))

	for i := 0; i < 100; i++ {
		c.RecordTick(fmt.Sprintf("one-off-%02d", i), 1)
	}
	c.RecordTick("HELD", 2)

	now = now.Add(30 * time.Minute)
	c.RecordTick("ACTIVE", 3)

	now = now.Add(31 * time.Minute)
	evicted := c.EvictIdle(time.Hour, func(mint string) bool { return mint == "HELD" })

	if len(evicted) != 100 || evicted[0] != "one-off-00" {
		t.Fatalf("evicted %d mints (%v...), want the 100 one-off mints", len(evicted), evicted[:min(3, len(evicted))])
	}
	if got := c.Mints(); len(got) != 2 || got[0] != "ACTIVE" || got[1] != "HELD" {
		t.Errorf("remaining mints = %v, want [ACTIVE HELD]", got)
	}
	if _, ok := c.CurrentPrice("one-off-00"); ok {
		t.Error("evicted mint still has a price")
	}
	if p, ok := c.CurrentPrice("HELD"); !ok || p != 2 {
		t.Errorf("kept mint lost its price: %v %v", p, ok)
	}
}

func TestCache_ConcurrentAppends(t *testing.T) {
	c := NewCacheWithLimit(100)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.RecordTick("M", float64(i))
			}
		}()
	}
	wg.Wait()
	if n := len(c.History("M")); n != 100 {
		t.Fatalf("history length = %d, want 100", n)
	}
}

func TestDerivePrice(t *testing.T) {
	tests := []struct {
		name  string
		ev    domain.DexEvent
		mint  string
		price float64
		ok    bool
	}{
		{
			name:  "bonding curve buy",
			ev:    &domain.BondingCurveTrade{Mint: "M", AmountSol: 1_000_000_000, AmountToken: 2_000_000_000, IsBuy: true},
			mint:  "M",
			price: 0.0005, // 1 SOL for 2000 tokens
			ok:    true,
		},
		{
			name:  "pumpswap sell",
			ev:    &domain.SwapTrade{Mint: "M", QuoteMint: domain.WSOLMint, AmountIn: 4_000_000, AmountOut: 2_000_000_000},
			mint:  "M",
			price: 0.5,
			ok:    true,
		},
		{
			name:  "pool swap sol out",
			ev:    &domain.PoolSwap{TokenIn: "X", TokenOut: domain.WSOLMint, AmountIn: 1_000_000, AmountOut: 100_000_000},
			mint:  "X",
			price: 0.1,
			ok:    true,
		},
		{
			name: "pool swap without sol",
			ev:   &domain.PoolSwap{TokenIn: "X", TokenOut: "Y", AmountIn: 1, AmountOut: 1},
		},
		{
			name: "zero amount",
			ev:   &domain.BondingCurveTrade{Mint: "M", AmountSol: 0, AmountToken: 5},
			mint: "M",
		},
		{
			name: "create",
			ev:   &domain.TokenCreated{Mint: "M"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mint, price, ok := DerivePrice(tt.ev)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if mint != tt.mint {
				t.Errorf("mint = %s, want %s", mint, tt.mint)
			}
			if math.Abs(price-tt.price) > 1e-12 {
				t.Errorf("price = %v, want %v", price, tt.price)
			}
		})
	}
}

func TestConversions(t *testing.T) {
	if got := LamportsToSol(2_500_000_000); got != 2.5 {
		t.Errorf("LamportsToSol = %v", got)
	}
	if got := SolToLamports(0.01); got != 10_000_000 {
		t.Errorf("SolToLamports = %d", got)
	}
	if got := TokensToRaw(1234.5678919); got != 1_234_567_891 {
		t.Errorf("TokensToRaw should truncate, got %d", got)
	}
	if got := TokensToRaw(-1); got != 0 {
		t.Errorf("negative amounts map to 0, got %d", got)
	}
	if got := RawToTokens(1_500_000); got != 1.5 {
		t.Errorf("RawToTokens = %v", got)
	}
}

type recordingSink struct {
	mu    sync.Mutex
	ticks []*domain.PriceTick
}

func (s *recordingSink) InsertBulk(_ context.Context, ticks []*domain.PriceTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, ticks...)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

func TestTickWriter_FlushesOnShutdown(t *testing.T) {
	sink := &recordingSink{}
	w := NewTickWriter([]NamedSink{{Name: "rec", Sink: sink}}, 16, 100, time.Hour, nil, nil)

	for i := 0; i < 5; i++ {
		w.Enqueue(domain.PriceTick{Mint: "M", Price: float64(i), TimestampMs: int64(i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if got := sink.count(); got != 5 {
		t.Fatalf("flushed %d ticks, want 5", got)
	}
}

func TestTickWriter_DropsWhenFull(t *testing.T) {
	w := NewTickWriter([]NamedSink{{Name: "rec", Sink: &recordingSink{}}}, 2, 10, time.Hour, nil, nil)
	for i := 0; i < 5; i++ {
		w.Enqueue(domain.PriceTick{Mint: "M"})
	}
	if w.Dropped() != 3 {
		t.Fatalf("dropped = %d, want 3", w.Dropped())
	}
}
