package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// TokenID returns the SHA-256 hash of a signed token, hex-encoded.
// It keys the access-token blacklist and is the value stored in the refresh slot,
// so raw tokens are never persisted.
func TokenID(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenIDEqual performs constant-time comparison of the provided token's ID
// with a stored ID. Returns true only if they match.
func TokenIDEqual(providedToken, storedID string) bool {
	return subtle.ConstantTimeCompare([]byte(TokenID(providedToken)), []byte(storedID)) == 1
}

// GenerateOpaqueToken returns n random bytes hex-encoded (2n characters).
func GenerateOpaqueToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
