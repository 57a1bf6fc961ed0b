package strategy

import (
	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/pricing"
)

// BuyEvent is a buy extracted from a feed event.
type BuyEvent struct {
	Mint      string
	Amount    float64 // raw input units for pool swaps, SOL for bonding-curve trades
	Timestamp int64   // local append time (ms)
	Trader    string
}

// ExtractBuyEvent returns the buy carried by ev, if any.
func ExtractBuyEvent(ev domain.DexEvent, nowMs int64) (BuyEvent, bool) {
	switch e := ev.(type) {
	case *domain.SwapTrade:
		if !e.IsBuy {
			return BuyEvent{}, false
		}
		return BuyEvent{Mint: e.Mint, Amount: float64(e.AmountIn), Timestamp: nowMs, Trader: e.Trader}, true

	case *domain.BondingCurveTrade:
		if !e.IsBuy {
			return BuyEvent{}, false
		}
		return BuyEvent{Mint: e.Mint, Amount: pricing.LamportsToSol(e.AmountSol), Timestamp: nowMs, Trader: e.Trader}, true

	case *domain.PoolSwap:
		if e.TokenIn != domain.WSOLMint {
			return BuyEvent{}, false
		}
		return BuyEvent{Mint: e.TokenOut, Amount: float64(e.AmountIn), Timestamp: nowMs, Trader: e.Trader}, true

	case *domain.TokenCreated, *domain.FeedError:
		return BuyEvent{}, false

	default:
		return BuyEvent{}, false
	}
}

// buyWindow keeps a trailing, time-pruned sequence of buys per mint.
// Mints whose buys have all expired are forgotten by a sweep that runs at
// most once per retention period.
type buyWindow struct {
	retentionMs int64
	byMint      map[string][]BuyEvent
	lastSweep   int64 // ms
}

func newBuyWindow(retentionMs int64) *buyWindow {
	return &buyWindow{
		retentionMs: retentionMs,
		byMint:      make(map[string][]BuyEvent),
	}
}

// add appends ev and prunes entries older than the retention relative to ev's time.
// It returns the mint's window, oldest first; callers must not retain it.
func (w *buyWindow) add(ev BuyEvent) []BuyEvent {
	if ev.Timestamp-w.lastSweep >= w.retentionMs {
		w.sweep(ev.Timestamp)
	}

	entries := prune(append(w.byMint[ev.Mint], ev), ev.Timestamp-w.retentionMs)
	w.byMint[ev.Mint] = entries
	return entries
}

// sweep prunes every mint against nowMs and deletes the ones left empty.
func (w *buyWindow) sweep(nowMs int64) {
	cutoff := nowMs - w.retentionMs
	for mint, entries := range w.byMint {
		if entries = prune(entries, cutoff); len(entries) == 0 {
			delete(w.byMint, mint)
			continue
		}
		w.byMint[mint] = entries
	}
	w.lastSweep = nowMs
}

// prune drops the leading entries older than cutoff, in place.
func prune(entries []BuyEvent, cutoff int64) []BuyEvent {
	keep := 0
	for keep < len(entries) && entries[keep].Timestamp < cutoff {
		keep++
	}
	if keep == 0 {
		return entries
	}
	if keep == len(entries) {
		return nil
	}
	return append(entries[:0], entries[keep:]...)
}

func (w *buyWindow) len(mint string) int {
	return len(w.byMint[mint])
}

func (w *buyWindow) mints() int {
	return len(w.byMint)
}
