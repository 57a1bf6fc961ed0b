// Package reporting summarizes closed positions per strategy and renders
// the summary as Markdown or CSV.
package reporting

import (
	"sort"
	"time"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/position"
)

// Report is the outcome of a run.
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Stats       position.Stats `json:"stats"`

	// Sorted by strategy name
	Strategies []StrategySummary `json:"strategies"`

	// Closed positions by exit time
	Trades []TradeRow `json:"trades"`

	// Still open at the end of the run
	Open []*domain.Position `json:"open,omitempty"`
}

// StrategySummary aggregates the closed positions of one strategy.
// Ratios are realized PnL divided by invested SOL.
type StrategySummary struct {
	Strategy             string  `json:"strategy"`
	Trades               int     `json:"trades"`
	Mints                int     `json:"mints"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	WinRate              float64 `json:"win_rate"`
	RealizedPnL          float64 `json:"realized_pnl"` // SOL
	Invested             float64 `json:"invested"`     // SOL
	ReturnMean           float64 `json:"return_mean"`
	ReturnMedian         float64 `json:"return_median"`
	ReturnP10            float64 `json:"return_p10"`
	ReturnP90            float64 `json:"return_p90"`
	ReturnStddev         float64 `json:"return_stddev"`
	MaxDrawdown          float64 `json:"max_drawdown"` // SOL, on cumulative realized PnL
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	AvgHoldMs            int64   `json:"avg_hold_ms"`
}

// TradeRow is one closed position.
type TradeRow struct {
	Strategy    string  `json:"strategy"`
	Mint        string  `json:"mint"`
	EntryTime   int64   `json:"entry_time"` // ms
	ExitTime    int64   `json:"exit_time"`  // ms
	EntryPrice  float64 `json:"entry_price"`
	ExitPrice   float64 `json:"exit_price"`
	InvestedSol float64 `json:"invested_sol"`
	RealizedPnL float64 `json:"realized_pnl"`
	Return      float64 `json:"return"`
}

// Build summarizes a position book export.
func Build(exp position.Export, now time.Time) *Report {
	rows := make([]TradeRow, 0, len(exp.Closed))
	for _, p := range exp.Closed {
		rows = append(rows, tradeRow(p))
	}
	sortTrades(rows)

	byStrategy := make(map[string][]TradeRow)
	for _, r := range rows {
		byStrategy[r.Strategy] = append(byStrategy[r.Strategy], r)
	}

	summaries := make([]StrategySummary, 0, len(byStrategy))
	for name, trades := range byStrategy {
		s := summarize(trades)
		s.Strategy = name
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Strategy < summaries[j].Strategy })

	return &Report{
		GeneratedAt: now.UTC(),
		Stats:       exp.Stats,
		Strategies:  summaries,
		Trades:      rows,
		Open:        exp.Active,
	}
}

func tradeRow(p *domain.Position) TradeRow {
	r := TradeRow{
		Strategy:    p.Strategy,
		Mint:        p.Mint,
		EntryTime:   p.EntryTime,
		EntryPrice:  p.EntryPrice,
		InvestedSol: p.InvestedSol,
		RealizedPnL: p.PnL(),
	}
	if p.ExitTime != nil {
		r.ExitTime = *p.ExitTime
	}
	if p.ExitPrice != nil {
		r.ExitPrice = *p.ExitPrice
	}
	if p.InvestedSol > 0 {
		r.Return = r.RealizedPnL / p.InvestedSol
	}
	return r
}

// sortTrades orders by exit time, then entry time, then mint.
func sortTrades(rows []TradeRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ExitTime != b.ExitTime {
			return a.ExitTime < b.ExitTime
		}
		if a.EntryTime != b.EntryTime {
			return a.EntryTime < b.EntryTime
		}
		return a.Mint < b.Mint
	})
}
