package memory

import (
	"context"
	"errors"
	"testing"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/storage"
)

func closedPosition(id string, exitTime int64) *domain.Position {
	exit := 0.002
	pnl := 1.0
	return &domain.Position{
		ID:          id,
		Mint:        "mint-" + id,
		Amount:      1000,
		EntryPrice:  0.001,
		Status:      domain.PositionClosed,
		Strategy:    "cb",
		ExitPrice:   &exit,
		ExitTime:    &exitTime,
		RealizedPnL: &pnl,
		Metadata:    map[string]string{"dex": "pumpfun"},
	}
}

func TestTradeJournal_RecordExecution(t *testing.T) {
	j := NewTradeJournal()
	ctx := context.Background()

	recs := []*domain.ExecutionRecord{
		{ExecutionID: "e2", Mint: "A", Side: domain.SignalSell, Success: true, ExecutedAt: 2000},
		{ExecutionID: "e1", Mint: "A", Side: domain.SignalBuy, Success: true, ExecutedAt: 1000},
		{ExecutionID: "e3", Mint: "B", Side: domain.SignalBuy, Error: "boom", ExecutedAt: 1500},
	}
	for _, r := range recs {
		if err := j.RecordExecution(ctx, r); err != nil {
			t.Fatalf("RecordExecution(%s): %v", r.ExecutionID, err)
		}
	}

	if err := j.RecordExecution(ctx, recs[0]); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := j.RecordExecution(ctx, &domain.ExecutionRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	byMint, _ := j.GetExecutionsByMint(ctx, "A")
	if len(byMint) != 2 || byMint[0].ExecutionID != "e1" || byMint[1].ExecutionID != "e2" {
		t.Errorf("unexpected executions for A: %+v", byMint)
	}

	inRange, _ := j.GetExecutionsByTimeRange(ctx, 1000, 1500)
	if len(inRange) != 2 || inRange[0].ExecutionID != "e1" || inRange[1].ExecutionID != "e3" {
		t.Errorf("unexpected executions in range: %+v", inRange)
	}

	// Returned records are copies
	byMint[0].Mint = "changed"
	again, _ := j.GetExecutionsByMint(ctx, "A")
	if again[0].Mint != "A" {
		t.Error("journal leaked an internal pointer")
	}
}

func TestTradeJournal_RecordClosedPosition(t *testing.T) {
	j := NewTradeJournal()
	ctx := context.Background()

	if err := j.RecordClosedPosition(ctx, closedPosition("p2", 3000)); err != nil {
		t.Fatalf("RecordClosedPosition: %v", err)
	}
	if err := j.RecordClosedPosition(ctx, closedPosition("p1", 2000)); err != nil {
		t.Fatalf("RecordClosedPosition: %v", err)
	}
	if err := j.RecordClosedPosition(ctx, closedPosition("p1", 2000)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	active := closedPosition("p3", 1)
	active.Status = domain.PositionActive
	if err := j.RecordClosedPosition(ctx, active); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("active positions must be rejected, got %v", err)
	}

	got, _ := j.GetClosedPositions(ctx, 0, 5000)
	if len(got) != 2 || got[0].ID != "p1" || got[1].ID != "p2" {
		t.Fatalf("unexpected closed positions: %+v", got)
	}
	if got[0].Metadata["dex"] != "pumpfun" {
		t.Errorf("metadata lost: %v", got[0].Metadata)
	}

	got, _ = j.GetClosedPositions(ctx, 2500, 5000)
	if len(got) != 1 || got[0].ID != "p2" {
		t.Errorf("range filter failed: %+v", got)
	}
}
