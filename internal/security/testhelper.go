package security

import "time"

// Test secrets for unit tests only. Do not use in production.
const (
	testAccessSecret  = "test-access-secret-0123456789abcdef"
	testRefreshSecret = "test-refresh-secret-0123456789abcdef"
)

// NewTestTokenIssuer returns a TokenIssuer using fixed test secrets.
// For unit tests only. Callers must not use in production.
func NewTestTokenIssuer() *TokenIssuer {
	p, err := NewTokenIssuer(testAccessSecret, testRefreshSecret, "test-issuer", 15*time.Minute, 24*time.Hour)
	if err != nil {
		panic(err)
	}
	return p
}
