package position

import (
	"time"

	"solana-dex-bot/internal/domain"
)

// Stats aggregates the position book.
type Stats struct {
	ActivePositions   int     `json:"active_positions"`
	ClosedPositions   int     `json:"closed_positions"`
	TotalInvested     float64 `json:"total_invested"`      // SOL in active positions
	TotalCurrentValue float64 `json:"total_current_value"` // SOL, active positions marked to market
	TotalPnL          float64 `json:"total_pnl"`           // active unrealized + closed realized
	DailyPnL          float64 `json:"daily_pnl"`           // positions opened or closed since local midnight
	WinRate           float64 `json:"win_rate"`            // 0..1 over closed positions
	AvgHoldTimeMs     int64   `json:"avg_hold_time_ms"`    // closed positions only
	LossStreak        int     `json:"loss_streak"`
}

// Export is the full position book.
type Export struct {
	Active []*domain.Position `json:"active"`
	Closed []*domain.Position `json:"closed"`
	Stats  Stats              `json:"stats"`
}

// TotalInvested returns the SOL committed to active positions.
func (m *Manager) TotalInvested() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0.0
	for _, p := range m.active {
		total += p.InvestedSol
	}
	return total
}

// TotalCurrentValue returns the marked value of active positions.
// Positions without a tick yet count at their invested amount.
func (m *Manager) TotalCurrentValue() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0.0
	for _, p := range m.active {
		total += currentValue(p)
	}
	return total
}

// TotalPnL returns unrealized PnL of active positions plus realized PnL of closed ones.
func (m *Manager) TotalPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0.0
	for _, p := range m.active {
		total += p.PnL()
	}
	for _, p := range m.closed {
		total += p.PnL()
	}
	return total
}

// DailyPnL returns the PnL of positions opened or closed since local midnight.
func (m *Manager) DailyPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyPnLLocked()
}

func (m *Manager) dailyPnLLocked() float64 {
	midnight := m.midnightMs()
	total := 0.0
	for _, p := range m.active {
		if p.EntryTime >= midnight {
			total += p.PnL()
		}
	}
	for _, p := range m.closed {
		closedToday := p.ExitTime != nil && *p.ExitTime >= midnight
		if closedToday || p.EntryTime >= midnight {
			total += p.PnL()
		}
	}
	return total
}

func (m *Manager) midnightMs() int64 {
	now := m.now().In(m.loc)
	y, mo, d := now.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, m.loc).UnixMilli()
}

// WinRate returns the fraction of closed positions whose value exceeds the SOL invested.
func (m *Manager) WinRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.winRateLocked()
}

func (m *Manager) winRateLocked() float64 {
	if len(m.closed) == 0 {
		return 0
	}
	wins := 0
	for _, p := range m.closed {
		if currentValue(p) > p.InvestedSol {
			wins++
		}
	}
	return float64(wins) / float64(len(m.closed))
}

// AverageHoldTimeMs returns the mean hold time of closed positions.
func (m *Manager) AverageHoldTimeMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.avgHoldLocked()
}

func (m *Manager) avgHoldLocked() int64 {
	var sum, n int64
	for _, p := range m.closed {
		if p.ExitTime == nil {
			continue
		}
		sum += *p.ExitTime - p.EntryTime
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// Stats returns all aggregates in one consistent read.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		ActivePositions: len(m.active),
		ClosedPositions: len(m.closed),
		DailyPnL:        m.dailyPnLLocked(),
		WinRate:         m.winRateLocked(),
		AvgHoldTimeMs:   m.avgHoldLocked(),
		LossStreak:      m.lossStreak,
	}
	for _, p := range m.active {
		s.TotalInvested += p.InvestedSol
		s.TotalCurrentValue += currentValue(p)
		s.TotalPnL += p.PnL()
	}
	for _, p := range m.closed {
		s.TotalPnL += p.PnL()
	}
	return s
}

// ExportData returns copies of the whole book with its aggregates.
func (m *Manager) ExportData() Export {
	return Export{
		Active: m.ActivePositions(),
		Closed: m.ClosedPositions(),
		Stats:  m.Stats(),
	}
}

func currentValue(p *domain.Position) float64 {
	if p.CurrentValue != nil {
		return *p.CurrentValue
	}
	return p.InvestedSol
}
