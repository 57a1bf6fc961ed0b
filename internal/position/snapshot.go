package position

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"solana-dex-bot/internal/domain"
)

// SnapshotKey is the state-store key the manager snapshot is saved under.
const SnapshotKey = "positions/snapshot"

const snapshotVersion = 1

type snapshot struct {
	Version    int                `msgpack:"v"`
	Active     []*domain.Position `msgpack:"active"`
	Closed     []*domain.Position `msgpack:"closed"`
	LossStreak int                `msgpack:"loss_streak"`
	LastLossAt int64              `msgpack:"last_loss_at"`
}

// Snapshot encodes the position book with msgpack.
func (m *Manager) Snapshot() ([]byte, error) {
	m.mu.RLock()
	s := snapshot{
		Version:    snapshotVersion,
		Active:     make([]*domain.Position, 0, len(m.active)),
		Closed:     make([]*domain.Position, 0, len(m.closed)),
		LossStreak: m.lossStreak,
		LastLossAt: m.lastLossAt,
	}
	for _, p := range m.active {
		s.Active = append(s.Active, p.Clone())
	}
	for _, p := range m.closed {
		s.Closed = append(s.Closed, p.Clone())
	}
	m.mu.RUnlock()

	data, err := msgpack.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("encode position snapshot: %w", err)
	}
	return data, nil
}

// Restore replaces the book with a snapshot produced by Snapshot.
// Listeners are not notified.
func (m *Manager) Restore(data []byte) error {
	var s snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode position snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return fmt.Errorf("position snapshot version %d: unsupported", s.Version)
	}

	active := make(map[string]*domain.Position, len(s.Active))
	for _, p := range s.Active {
		if p == nil || p.Mint == "" {
			continue
		}
		active[p.Mint] = p
	}

	m.mu.Lock()
	m.active = active
	m.closed = s.Closed
	m.lossStreak = s.LossStreak
	m.lastLossAt = s.LastLossAt
	m.mu.Unlock()
	return nil
}
