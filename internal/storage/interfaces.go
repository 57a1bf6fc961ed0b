// Package storage defines the persistence contracts of the bot. Backends
// live in sub-packages; memory implementations are the defaults.
package storage

import (
	"context"
	"time"

	"solana-dex-bot/internal/domain"
)

// TradeJournal is the append-only record of executions and closed positions.
type TradeJournal interface {
	// RecordExecution appends an execution. Returns ErrDuplicateKey if execution_id exists.
	RecordExecution(ctx context.Context, rec *domain.ExecutionRecord) error

	// RecordClosedPosition appends a closed position. Returns ErrDuplicateKey if the id exists.
	RecordClosedPosition(ctx context.Context, pos *domain.Position) error

	// GetExecutionsByMint retrieves executions for a mint, ordered by executed_at ASC.
	GetExecutionsByMint(ctx context.Context, mint string) ([]*domain.ExecutionRecord, error)

	// GetExecutionsByTimeRange retrieves executions within [start, end] (inclusive, ms).
	GetExecutionsByTimeRange(ctx context.Context, start, end int64) ([]*domain.ExecutionRecord, error)

	// GetClosedPositions retrieves positions closed within [start, end] (inclusive, ms),
	// ordered by exit_time ASC.
	GetClosedPositions(ctx context.Context, start, end int64) ([]*domain.Position, error)
}

// TickStore persists price ticks.
type TickStore interface {
	// InsertBulk appends ticks. Ticks are observations, duplicates are allowed.
	InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error

	// GetByTimeRange retrieves ticks for a mint within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.PriceTick, error)
}

// StateStore is a small key-value store for process state that must
// survive restarts.
type StateStore interface {
	// Get returns the value stored under key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// PriceMirror publishes the latest price per mint for external readers.
type PriceMirror interface {
	SetPrice(ctx context.Context, mint string, price float64, ts time.Time) error
}

// Archive stores closed positions that retention removed from memory.
type Archive interface {
	ArchivePositions(ctx context.Context, positions []*domain.Position) error
}

// Publisher sends raw payloads to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
