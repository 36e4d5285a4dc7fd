package revocation

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry records one revoked token. ExpiresAt is the token's own exp claim;
// the entry becomes purgeable the moment the token itself can no longer
// verify.
type Entry struct {
	TokenID   string
	UserID    uint32
	ExpiresAt time.Time
	RevokedAt time.Time
}

// TokenID derives the store key for an opaque token string. Hashing keeps
// raw tokens out of the store and gives every token a fixed-size key.
func TokenID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
