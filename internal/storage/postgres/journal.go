package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/storage"
)

// TradeJournal implements storage.TradeJournal using PostgreSQL.
type TradeJournal struct {
	pool *Pool
}

// NewTradeJournal creates a new TradeJournal.
func NewTradeJournal(pool *Pool) *TradeJournal {
	return &TradeJournal{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeJournal = (*TradeJournal)(nil)

const executionColumns = `
	execution_id, signal_id, strategy, mint, side,
	requested_amount, reason, priority, success, signature, error,
	executed_amount, executed_price, fee, dry_run, executed_at
`

const closedPositionColumns = `
	id, mint, strategy, amount, entry_price, entry_time, entry_tx_signature,
	invested_sol, exit_price, exit_time, exit_tx_signature, realized_pnl, metadata
`

// RecordExecution appends an execution. Returns ErrDuplicateKey if execution_id exists.
func (s *TradeJournal) RecordExecution(ctx context.Context, r *domain.ExecutionRecord) error {
	if r == nil || r.ExecutionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO executions (` + executionColumns + `) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ExecutionID, r.SignalID, r.Strategy, r.Mint, string(r.Side),
		r.RequestedAmount, r.Reason, string(r.Priority), r.Success, r.Signature, r.Error,
		r.ExecutedAmount, r.ExecutedPrice, r.Fee, r.DryRun, r.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// RecordClosedPosition appends a closed position. Returns ErrDuplicateKey if the id exists.
func (s *TradeJournal) RecordClosedPosition(ctx context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" || p.Status != domain.PositionClosed ||
		p.ExitPrice == nil || p.ExitTime == nil || p.RealizedPnL == nil {
		return storage.ErrInvalidInput
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	query := `
		INSERT INTO closed_positions (` + closedPositionColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13
		)
	`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Mint, p.Strategy, p.Amount, p.EntryPrice, p.EntryTime, p.EntryTxSignature,
		p.InvestedSol, *p.ExitPrice, *p.ExitTime, p.ExitTxSignature, *p.RealizedPnL, metadata,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert closed position: %w", err)
	}
	return nil
}

// GetExecutionsByMint retrieves executions for a mint, ordered by executed_at ASC.
func (s *TradeJournal) GetExecutionsByMint(ctx context.Context, mint string) ([]*domain.ExecutionRecord, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE mint = $1
		ORDER BY executed_at ASC, execution_id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get executions by mint: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// GetExecutionsByTimeRange retrieves executions within [start, end] (inclusive).
func (s *TradeJournal) GetExecutionsByTimeRange(ctx context.Context, start, end int64) ([]*domain.ExecutionRecord, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE executed_at >= $1 AND executed_at <= $2
		ORDER BY executed_at ASC, execution_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get executions by time range: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// GetClosedPositions retrieves positions closed within [start, end] (inclusive).
func (s *TradeJournal) GetClosedPositions(ctx context.Context, start, end int64) ([]*domain.Position, error) {
	query := `
		SELECT ` + closedPositionColumns + `
		FROM closed_positions
		WHERE exit_time >= $1 AND exit_time <= $2
		ORDER BY exit_time ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get closed positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		var p domain.Position
		var exitPrice, realized float64
		var exitTime int64

		err := rows.Scan(
			&p.ID, &p.Mint, &p.Strategy, &p.Amount, &p.EntryPrice, &p.EntryTime, &p.EntryTxSignature,
			&p.InvestedSol, &exitPrice, &exitTime, &p.ExitTxSignature, &realized, &p.Metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scan closed position row: %w", err)
		}

		p.Status = domain.PositionClosed
		p.ExitPrice = &exitPrice
		p.ExitTime = &exitTime
		p.RealizedPnL = &realized
		p.LastUpdate = exitTime
		positions = append(positions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closed position rows: %w", err)
	}

	return positions, nil
}

// scanExecutions scans multiple rows into a slice of ExecutionRecord.
func scanExecutions(rows pgx.Rows) ([]*domain.ExecutionRecord, error) {
	var records []*domain.ExecutionRecord

	for rows.Next() {
		var r domain.ExecutionRecord
		var side, priority string

		err := rows.Scan(
			&r.ExecutionID, &r.SignalID, &r.Strategy, &r.Mint, &side,
			&r.RequestedAmount, &r.Reason, &priority, &r.Success, &r.Signature, &r.Error,
			&r.ExecutedAmount, &r.ExecutedPrice, &r.Fee, &r.DryRun, &r.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}

		r.Side = domain.SignalType(side)
		r.Priority = domain.Priority(priority)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}

	return records, nil
}
