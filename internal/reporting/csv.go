package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the strategy summaries as CSV.
func RenderCSV(rows []StrategySummary) string {
	var sb strings.Builder

	sb.WriteString("strategy,trades,mints,wins,losses,win_rate,realized_pnl,invested,")
	sb.WriteString("return_mean,return_median,return_p10,return_p90,return_stddev,")
	sb.WriteString("max_drawdown,max_consecutive_losses,avg_hold_ms\n")

	for _, s := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d,%d,%.6f,%.9f,%.9f,%.6f,%.6f,%.6f,%.6f,%.6f,%.9f,%d,%d\n",
			s.Strategy,
			s.Trades,
			s.Mints,
			s.Wins,
			s.Losses,
			s.WinRate,
			s.RealizedPnL,
			s.Invested,
			s.ReturnMean,
			s.ReturnMedian,
			s.ReturnP10,
			s.ReturnP90,
			s.ReturnStddev,
			s.MaxDrawdown,
			s.MaxConsecutiveLosses,
			s.AvgHoldMs,
		))
	}

	return sb.String()
}
