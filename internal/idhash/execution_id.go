package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeExecutionID computes a deterministic execution id using SHA256.
// Formula: SHA256(signal_id|side|mint|executed_at_ms)
// Returns hex-encoded hash (64 characters).
func ComputeExecutionID(
	signalID string,
	side string,
	mint string,
	executedAtMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		signalID,
		side,
		mint,
		executedAtMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
