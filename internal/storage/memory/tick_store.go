package memory

import (
	"context"
	"sort"
	"sync"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
type TickStore struct {
	mu    sync.RWMutex
	ticks map[string][]domain.PriceTick // keyed by mint, insertion order
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string][]domain.PriceTick)}
}

// InsertBulk appends ticks. Fails the entire batch on invalid input.
func (s *TickStore) InsertBulk(_ context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, t := range ticks {
		if t == nil || t.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range ticks {
		s.ticks[t.Mint] = append(s.ticks[t.Mint], *t)
	}
	return nil
}

// GetByTimeRange retrieves ticks for a mint within [start, end] (inclusive).
func (s *TickStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceTick
	for _, t := range s.ticks[mint] {
		if t.TimestampMs >= start && t.TimestampMs <= end {
			tickCopy := t
			result = append(result, &tickCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

// Count returns the number of stored ticks.
func (s *TickStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ts := range s.ticks {
		n += len(ts)
	}
	return n
}

var _ storage.TickStore = (*TickStore)(nil)
