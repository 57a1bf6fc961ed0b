package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as Markdown.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Trading Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Book summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Active Positions | %d |\n", r.Stats.ActivePositions))
	sb.WriteString(fmt.Sprintf("| Closed Positions | %d |\n", r.Stats.ClosedPositions))
	sb.WriteString(fmt.Sprintf("| Invested (SOL) | %.4f |\n", r.Stats.TotalInvested))
	sb.WriteString(fmt.Sprintf("| Total PnL (SOL) | %+.4f |\n", r.Stats.TotalPnL))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", r.Stats.WinRate*100))
	sb.WriteString(fmt.Sprintf("| Avg Hold | %s |\n", time.Duration(r.Stats.AvgHoldTimeMs)*time.Millisecond))
	sb.WriteString("\n")

	sb.WriteString("## Strategies\n\n")
	if len(r.Strategies) > 0 {
		sb.WriteString("| Strategy | Trades | Mints | WinRate | PnL | Mean | Median | P10 | P90 | MaxDD | MaxLoss |\n")
		sb.WriteString("|----------|--------|-------|---------|-----|------|--------|-----|-----|-------|---------|\n")
		for _, s := range r.Strategies {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f | %+.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %d |\n",
				s.Strategy, s.Trades, s.Mints, s.WinRate, s.RealizedPnL,
				s.ReturnMean, s.ReturnMedian, s.ReturnP10, s.ReturnP90,
				s.MaxDrawdown, s.MaxConsecutiveLosses))
		}
	} else {
		sb.WriteString("No closed positions.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Exit | Strategy | Mint | Entry | Exit Price | PnL | Return |\n")
		sb.WriteString("|------|----------|------|-------|------------|-----|--------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.9f | %.9f | %+.6f | %+.2f%% |\n",
				time.UnixMilli(t.ExitTime).UTC().Format(time.RFC3339),
				t.Strategy, t.Mint, t.EntryPrice, t.ExitPrice, t.RealizedPnL, t.Return*100))
		}
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	if len(r.Open) > 0 {
		sb.WriteString("## Open Positions\n\n")
		for _, p := range r.Open {
			sb.WriteString(fmt.Sprintf("- %s (%s): %.6f SOL at %.9f\n", p.Mint, p.Strategy, p.InvestedSol, p.EntryPrice))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
