package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"solana-dex-bot/internal/storage"
)

func TestStateStoreRoundTrip(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Get(ctx, "positions/snapshot"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Put(ctx, "positions/snapshot", []byte{0x81, 0xa1, 'a', 0x01}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Put(ctx, "positions/snapshot", []byte{0x80}); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	val, err := store.Get(ctx, "positions/snapshot")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(val) != 1 || val[0] != 0x80 {
		t.Fatalf("unexpected value: %x", val)
	}
	if err := store.Delete(ctx, "positions/snapshot"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "positions/snapshot"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected key to be deleted, got %v", err)
	}
}

func TestStateStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	val, err := store.Get(ctx, "k")
	if err != nil || string(val) != "v" {
		t.Fatalf("get after reopen = %q, %v", val, err)
	}
}
