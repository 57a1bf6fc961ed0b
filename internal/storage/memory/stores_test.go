package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/storage"
)

func TestTickStore_InsertAndRange(t *testing.T) {
	s := NewTickStore()
	ctx := context.Background()

	err := s.InsertBulk(ctx, []*domain.PriceTick{
		{Mint: "A", Price: 0.002, TimestampMs: 200},
		{Mint: "A", Price: 0.001, TimestampMs: 100},
		{Mint: "B", Price: 0.5, TimestampMs: 150},
		{Mint: "A", Price: 0.001, TimestampMs: 100},
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}
	if s.Count() != 4 {
		t.Errorf("duplicate observations are kept, count=%d", s.Count())
	}

	got, _ := s.GetByTimeRange(ctx, "A", 100, 150)
	if len(got) != 2 || got[0].TimestampMs != 100 {
		t.Errorf("unexpected range result %+v", got)
	}

	if err := s.InsertBulk(ctx, []*domain.PriceTick{{Mint: "C"}, {}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if got, _ := s.GetByTimeRange(ctx, "C", 0, 1000); len(got) != 0 {
		t.Error("a rejected batch must not be partially stored")
	}
}

func TestStateStore(t *testing.T) {
	s := NewStateStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	value := []byte("v1")
	if err := s.Put(ctx, "k", value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	if err != nil || !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := s.Put(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := s.Get(ctx, "k"); string(got) != "v2" {
		t.Errorf("expected overwrite, got %q", got)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestArchive(t *testing.T) {
	a := NewArchive()
	p := closedPosition("p1", 10)
	if err := a.ArchivePositions(context.Background(), []*domain.Position{p}); err != nil {
		t.Fatalf("ArchivePositions: %v", err)
	}
	p.Mint = "mutated"
	if got := a.Positions(); len(got) != 1 || got[0].Mint != "mint-p1" {
		t.Errorf("unexpected archive contents %+v", got)
	}
}
