// Package checksum computes the content digests stored as md_content_hash.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString is Sum for a Markdown body held as a string.
func SumString(s string) string {
	return Sum([]byte(s))
}
