package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePositionID computes a deterministic position id using SHA256.
// Formula: SHA256(mint|strategy|entry_time_ms|entry_tx_signature)
// Returns hex-encoded hash (64 characters).
func ComputePositionID(
	mint string,
	strategy string,
	entryTimeMs int64,
	entryTxSignature string,
) string {
	data := fmt.Sprintf("%s|%s|%d|%s",
		mint,
		strategy,
		entryTimeMs,
		entryTxSignature,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
