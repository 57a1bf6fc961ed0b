package memory

import (
	"context"
	"sort"
	"sync"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/storage"
)

// TradeJournal is an in-memory implementation of storage.TradeJournal.
type TradeJournal struct {
	mu         sync.RWMutex
	executions map[string]*domain.ExecutionRecord // keyed by execution_id
	closed     map[string]*domain.Position        // keyed by position id
}

// NewTradeJournal creates a new in-memory trade journal.
func NewTradeJournal() *TradeJournal {
	return &TradeJournal{
		executions: make(map[string]*domain.ExecutionRecord),
		closed:     make(map[string]*domain.Position),
	}
}

// RecordExecution appends an execution. Returns ErrDuplicateKey if execution_id exists.
func (j *TradeJournal) RecordExecution(_ context.Context, rec *domain.ExecutionRecord) error {
	if rec == nil || rec.ExecutionID == "" {
		return storage.ErrInvalidInput
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.executions[rec.ExecutionID]; exists {
		return storage.ErrDuplicateKey
	}
	recCopy := *rec
	j.executions[rec.ExecutionID] = &recCopy
	return nil
}

// RecordClosedPosition appends a closed position. Returns ErrDuplicateKey if the id exists.
func (j *TradeJournal) RecordClosedPosition(_ context.Context, pos *domain.Position) error {
	if pos == nil || pos.ID == "" || pos.Status != domain.PositionClosed {
		return storage.ErrInvalidInput
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.closed[pos.ID]; exists {
		return storage.ErrDuplicateKey
	}
	j.closed[pos.ID] = pos.Clone()
	return nil
}

// GetExecutionsByMint retrieves executions for a mint, ordered by executed_at ASC.
func (j *TradeJournal) GetExecutionsByMint(_ context.Context, mint string) ([]*domain.ExecutionRecord, error) {
	return j.filterExecutions(func(r *domain.ExecutionRecord) bool { return r.Mint == mint }), nil
}

// GetExecutionsByTimeRange retrieves executions within [start, end] (inclusive).
func (j *TradeJournal) GetExecutionsByTimeRange(_ context.Context, start, end int64) ([]*domain.ExecutionRecord, error) {
	return j.filterExecutions(func(r *domain.ExecutionRecord) bool {
		return r.ExecutedAt >= start && r.ExecutedAt <= end
	}), nil
}

func (j *TradeJournal) filterExecutions(keep func(*domain.ExecutionRecord) bool) []*domain.ExecutionRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.ExecutionRecord
	for _, r := range j.executions {
		if keep(r) {
			recCopy := *r
			result = append(result, &recCopy)
		}
	}

	sort.Slice(result, func(a, b int) bool {
		if result[a].ExecutedAt != result[b].ExecutedAt {
			return result[a].ExecutedAt < result[b].ExecutedAt
		}
		return result[a].ExecutionID < result[b].ExecutionID
	})
	return result
}

// GetClosedPositions retrieves positions closed within [start, end] (inclusive).
func (j *TradeJournal) GetClosedPositions(_ context.Context, start, end int64) ([]*domain.Position, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.Position
	for _, p := range j.closed {
		if p.ExitTime != nil && *p.ExitTime >= start && *p.ExitTime <= end {
			result = append(result, p.Clone())
		}
	}

	sort.Slice(result, func(a, b int) bool {
		if *result[a].ExitTime != *result[b].ExitTime {
			return *result[a].ExitTime < *result[b].ExitTime
		}
		return result[a].ID < result[b].ID
	})
	return result, nil
}

var _ storage.TradeJournal = (*TradeJournal)(nil)
