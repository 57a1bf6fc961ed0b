package memory

import (
	"context"
	"sync"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/storage"
)

// Archive keeps archived positions in memory.
type Archive struct {
	mu        sync.Mutex
	positions []*domain.Position
}

// NewArchive creates an empty in-memory archive.
func NewArchive() *Archive {
	return &Archive{}
}

// ArchivePositions appends copies of positions.
func (a *Archive) ArchivePositions(_ context.Context, positions []*domain.Position) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, p := range positions {
		a.positions = append(a.positions, p.Clone())
	}
	return nil
}

// Positions returns copies of everything archived so far.
func (a *Archive) Positions() []*domain.Position {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*domain.Position, len(a.positions))
	for i, p := range a.positions {
		out[i] = p.Clone()
	}
	return out
}

var _ storage.Archive = (*Archive)(nil)
