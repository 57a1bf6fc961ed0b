package idhash

import (
	"testing"
)

func TestComputePositionID(t *testing.T) {
	tests := []struct {
		name      string
		mint      string
		strategy  string
		entryTime int64
		signature string
		wantLen   int // hash length should be 64
	}{
		{
			name:      "live entry",
			mint:      "TokenMint123ABC",
			strategy:  "consecutive_buy",
			entryTime: 1704067234567,
			signature: "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
			wantLen:   64,
		},
		{
			name:      "dry run entry",
			mint:      "AnotherMint999",
			strategy:  "momentum",
			entryTime: 1704067300000,
			signature: "dryrun-0f8fad5b-d9cb-469f-a165-70867728950e",
			wantLen:   64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePositionID(tt.mint, tt.strategy, tt.entryTime, tt.signature)

			if len(got) != tt.wantLen {
				t.Errorf("ComputePositionID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputePositionID(tt.mint, tt.strategy, tt.entryTime, tt.signature)
			if got != got2 {
				t.Errorf("ComputePositionID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputePositionID_DifferentInputs(t *testing.T) {
	base := ComputePositionID("mint", "consecutive_buy", 1000, "sig")

	variants := []string{
		ComputePositionID("mint2", "consecutive_buy", 1000, "sig"),
		ComputePositionID("mint", "momentum", 1000, "sig"),
		ComputePositionID("mint", "consecutive_buy", 1001, "sig"),
		ComputePositionID("mint", "consecutive_buy", 1000, "sig2"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d should produce a different id", i)
		}
	}
}

func TestComputeExecutionID(t *testing.T) {
	a := ComputeExecutionID("signal-1", "buy", "mint", 1704067234567)
	b := ComputeExecutionID("signal-1", "buy", "mint", 1704067234567)
	if a != b {
		t.Fatalf("ComputeExecutionID() not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("ComputeExecutionID() length = %d, want 64", len(a))
	}
	if a == ComputeExecutionID("signal-1", "sell", "mint", 1704067234567) {
		t.Error("side must change the id")
	}
}
