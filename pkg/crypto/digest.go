package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the SHA-256 hex digest of a secret. Passwords and one-time
// codes are stored as digests and verified by digest equality only, which
// keeps the comparison expressible as a plain store filter.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
