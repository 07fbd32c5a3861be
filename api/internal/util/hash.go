package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex hashes bytes for idempotency keys and webhook paths.
func SHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// ShortHash is the first 16 hex chars of SHA256Hex.
func ShortHash(s string) string {
	return SHA256Hex([]byte(s))[:16]
}
