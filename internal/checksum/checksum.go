package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data. Note handlers use it
// as the ETag for optimistic concurrency on manual updates.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString is Sum over string content.
func SumString(s string) string {
	return Sum([]byte(s))
}
