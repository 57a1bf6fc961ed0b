package reporting

import (
	"math"
	"sort"
)

// summarize computes the aggregate of trades, which must be in exit order.
func summarize(trades []TradeRow) StrategySummary {
	n := len(trades)
	if n == 0 {
		return StrategySummary{}
	}

	var s StrategySummary
	s.Trades = n

	mints := make(map[string]struct{})
	returns := make([]float64, n)
	pnls := make([]float64, n)
	var holdTotal int64
	for i, t := range trades {
		mints[t.Mint] = struct{}{}
		if t.RealizedPnL > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		s.RealizedPnL += t.RealizedPnL
		s.Invested += t.InvestedSol
		returns[i] = t.Return
		pnls[i] = t.RealizedPnL
		if t.ExitTime > t.EntryTime {
			holdTotal += t.ExitTime - t.EntryTime
		}
	}
	s.Mints = len(mints)
	s.WinRate = float64(s.Wins) / float64(n)
	s.AvgHoldMs = holdTotal / int64(n)

	sorted := make([]float64, n)
	copy(sorted, returns)
	sort.Float64s(sorted)

	s.ReturnMean = mean(returns)
	s.ReturnStddev = stddev(returns, s.ReturnMean)
	s.ReturnMedian = percentile(sorted, 0.50)
	s.ReturnP10 = percentile(sorted, 0.10)
	s.ReturnP90 = percentile(sorted, 0.90)

	s.MaxDrawdown = maxDrawdown(pnls)
	s.MaxConsecutiveLosses = maxConsecutiveLosses(pnls)
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(xs []float64, mean float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// percentile interpolates linearly; sorted must be ascending.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// maxDrawdown is the worst peak-to-trough fall of cumulative PnL.
func maxDrawdown(pnls []float64) float64 {
	cumulative, peak, worst := 0.0, 0.0, 0.0
	for _, p := range pnls {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > worst {
			worst = dd
		}
	}
	return worst
}

// maxConsecutiveLosses is the longest run of PnL <= 0.
func maxConsecutiveLosses(pnls []float64) int {
	longest, current := 0, 0
	for _, p := range pnls {
		if p <= 0 {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}
