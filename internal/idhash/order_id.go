// Package idhash derives deterministic identifiers for backtest orders so
// that replaying the same strategy over the same candles reproduces the
// same IDs. Live orders use random uuids instead.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeOrderID computes a deterministic order ID using SHA256.
// Formula: SHA256(ticker|label|direction|open_time_ms)
// Returns hex-encoded hash (64 characters).
func ComputeOrderID(
	ticker string,
	label string,
	direction string,
	openTimeMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		ticker,
		label,
		direction,
		openTimeMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
