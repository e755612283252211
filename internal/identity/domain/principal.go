package domain

import "time"

// Principal is the verified caller produced by authenticating an access token.
// RawToken is kept so logout can blacklist the exact token that was presented.
type Principal struct {
	IdentityID string
	Email      string
	// SessionID is the session the token was minted for; empty for tokens without a sid claim.
	SessionID string
	// TokenID is the blacklist key of the access token.
	TokenID   string
	ExpiresAt time.Time
	RawToken  string
}

// RemainingTTL returns how long the access token stays valid after now. Never negative.
func (p *Principal) RemainingTTL(now time.Time) time.Duration {
	d := p.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
