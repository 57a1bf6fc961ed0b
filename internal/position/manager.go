// Package position holds the authoritative set of open and closed positions.
package position

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/idhash"
)

// ErrPositionNotFound is returned when a mint has no active position.
var ErrPositionNotFound = errors.New("position not found")

// DefaultRetentionDays is how long closed positions are kept.
const DefaultRetentionDays = 7

const dayMs = int64(24 * time.Hour / time.Millisecond)

// PriceStore is the shared price cache the manager writes ticks into.
type PriceStore interface {
	RecordTick(mint string, price float64)
	CurrentPrice(mint string) (float64, bool)
}

// Listener observes position lifecycle transitions.
// Callbacks run after the manager lock is released and receive copies.
type Listener interface {
	PositionOpened(pos *domain.Position)
	PositionClosed(pos *domain.Position)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLocation sets the zone used for the daily PnL midnight.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) { m.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger.Named("positions") }
}

// WithListener registers a lifecycle listener.
func WithListener(l Listener) Option {
	return func(m *Manager) { m.listeners = append(m.listeners, l) }
}

// Manager owns active positions keyed by mint and the closed-position log.
type Manager struct {
	mu     sync.RWMutex
	active map[string]*domain.Position
	closed []*domain.Position

	lossStreak int
	lastLossAt int64

	prices    PriceStore
	now       func() time.Time
	loc       *time.Location
	logger    *zap.Logger
	listeners []Listener
}

// NewManager creates a Manager writing ticks into prices.
func NewManager(prices PriceStore, opts ...Option) *Manager {
	m := &Manager{
		active: make(map[string]*domain.Position),
		prices: prices,
		now:    time.Now,
		loc:    time.Local,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) nowMs() int64 {
	return m.now().UnixMilli()
}

// OpenPosition inserts pos keyed by its mint, replacing any existing entry.
// Callers check uniqueness and position caps beforehand.
func (m *Manager) OpenPosition(pos *domain.Position) *domain.Position {
	now := m.nowMs()

	p := pos.Clone()
	if p.EntryTime == 0 {
		p.EntryTime = now
	}
	if p.ID == "" {
		p.ID = idhash.ComputePositionID(p.Mint, p.Strategy, p.EntryTime, p.EntryTxSignature)
	}
	p.Status = domain.PositionActive
	p.LastUpdate = now

	m.mu.Lock()
	if prev, ok := m.active[p.Mint]; ok {
		m.logger.Warn("overwriting active position",
			zap.String("mint", p.Mint),
			zap.String("previous_id", prev.ID),
		)
	}
	m.active[p.Mint] = p
	out := p.Clone()
	m.mu.Unlock()

	m.logger.Info("position opened",
		zap.String("mint", out.Mint),
		zap.String("strategy", out.Strategy),
		zap.Float64("amount", out.Amount),
		zap.Float64("entry_price", out.EntryPrice),
		zap.Float64("invested_sol", out.InvestedSol),
	)
	for _, l := range m.listeners {
		l.PositionOpened(out.Clone())
	}
	return out
}

// ClosePosition realizes PnL at the current price, moves the position to the
// closed log and removes it from the active set.
// The close price is the cached price, then the position's last mark, then
// the executed price, then the entry price.
func (m *Manager) ClosePosition(mint string, res domain.TradeResult) (*domain.Position, error) {
	now := m.nowMs()

	m.mu.Lock()
	p, ok := m.active[mint]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("close %s: %w", mint, ErrPositionNotFound)
	}

	price := m.closePrice(p, res)
	pnl := (price - p.EntryPrice) * p.Amount
	value := p.Amount * price

	exitTime := res.ExecutedAt
	if exitTime == 0 {
		exitTime = now
	}

	p.CurrentValue = &value
	if p.EntryPrice > 0 {
		ratio := (price - p.EntryPrice) / p.EntryPrice
		p.PnLRatio = &ratio
	}
	p.ExitPrice = &price
	p.ExitTime = &exitTime
	p.ExitTxSignature = res.Signature
	p.RealizedPnL = &pnl
	p.Status = domain.PositionClosed
	p.LastUpdate = now

	delete(m.active, mint)
	m.closed = append(m.closed, p)

	if pnl < 0 {
		m.lossStreak++
		m.lastLossAt = now
	} else {
		m.lossStreak = 0
	}
	out := p.Clone()
	m.mu.Unlock()

	m.logger.Info("position closed",
		zap.String("mint", mint),
		zap.String("strategy", out.Strategy),
		zap.Float64("exit_price", price),
		zap.Float64("pnl", pnl),
	)
	for _, l := range m.listeners {
		l.PositionClosed(out.Clone())
	}
	return out, nil
}

func (m *Manager) closePrice(p *domain.Position, res domain.TradeResult) float64 {
	if m.prices != nil {
		if price, ok := m.prices.CurrentPrice(p.Mint); ok {
			return price
		}
	}
	if price, ok := p.MarkPrice(); ok {
		return price
	}
	if res.ExecutedPrice != nil {
		return *res.ExecutedPrice
	}
	return p.EntryPrice
}

// UpdatePrice records a tick and revalues the active position for mint.
func (m *Manager) UpdatePrice(mint string, price float64) {
	if m.prices != nil {
		m.prices.RecordTick(mint, price)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.active[mint]
	if !ok {
		return
	}
	value := p.Amount * price
	p.CurrentValue = &value
	if p.EntryPrice > 0 {
		ratio := (price - p.EntryPrice) / p.EntryPrice
		p.PnLRatio = &ratio
	}
	p.LastUpdate = m.nowMs()
}

// MarkClosing flags an active position while its sell is in flight.
func (m *Manager) MarkClosing(mint string) error {
	return m.setStatus(mint, domain.PositionClosing)
}

// Reactivate reverts a closing position after a failed sell.
func (m *Manager) Reactivate(mint string) error {
	return m.setStatus(mint, domain.PositionActive)
}

func (m *Manager) setStatus(mint string, status domain.PositionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.active[mint]
	if !ok {
		return fmt.Errorf("%s: %w", mint, ErrPositionNotFound)
	}
	p.Status = status
	p.LastUpdate = m.nowMs()
	return nil
}

// GetPosition returns a copy of the active position for mint.
func (m *Manager) GetPosition(mint string) (*domain.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.active[mint]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// HasActivePosition reports whether mint has an open position.
func (m *Manager) HasActivePosition(mint string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[mint]
	return ok
}

// ActivePositions returns copies of open positions ordered by entry time.
func (m *Manager) ActivePositions() []*domain.Position {
	m.mu.RLock()
	out := make([]*domain.Position, 0, len(m.active))
	for _, p := range m.active {
		out = append(out, p.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime != out[j].EntryTime {
			return out[i].EntryTime < out[j].EntryTime
		}
		return out[i].Mint < out[j].Mint
	})
	return out
}

// ClosedPositions returns copies of the closed log in close order.
func (m *Manager) ClosedPositions() []*domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Position, len(m.closed))
	for i, p := range m.closed {
		out[i] = p.Clone()
	}
	return out
}

// ActiveCount returns the number of open positions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// CountByStrategy returns the number of open positions owned by strategy.
func (m *Manager) CountByStrategy(strategy string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.active {
		if p.Strategy == strategy {
			n++
		}
	}
	return n
}

// LossStreak returns the number of consecutive losing closes and the time of the last one.
func (m *Manager) LossStreak() (count int, lastLossAt int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lossStreak, m.lastLossAt
}

// CleanupClosed removes closed positions whose LastUpdate is more than
// olderThanDays old and returns them.
func (m *Manager) CleanupClosed(olderThanDays int) []*domain.Position {
	if olderThanDays <= 0 {
		olderThanDays = DefaultRetentionDays
	}
	cutoff := m.nowMs() - int64(olderThanDays)*dayMs

	m.mu.Lock()
	defer m.mu.Unlock()

	var pruned []*domain.Position
	kept := m.closed[:0]
	for _, p := range m.closed {
		if p.LastUpdate < cutoff {
			pruned = append(pruned, p)
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(m.closed); i++ {
		m.closed[i] = nil
	}
	m.closed = kept

	if len(pruned) > 0 {
		m.logger.Info("pruned closed positions",
			zap.Int("count", len(pruned)),
			zap.Int("retention_days", olderThanDays),
		)
	}
	return pruned
}
