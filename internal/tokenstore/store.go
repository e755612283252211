// Package tokenstore holds the single current refresh token per identity and the
// access-token blacklist. Values are token IDs (security.TokenID), never raw tokens.
package tokenstore

import (
	"context"
	"crypto/subtle"
	"time"
)

// Store is the refresh slot and blacklist. All operations are idempotent.
// Backend failures (including timeouts) are returned as autherr.DependencyUnavailable.
type Store interface {
	// SetCurrentRefreshToken overwrites the refresh slot for identityID. The previous token
	// stops being current immediately.
	SetCurrentRefreshToken(ctx context.Context, identityID, token string, ttl time.Duration) error
	// IsCurrentRefreshToken reports whether token is the one stored for identityID.
	IsCurrentRefreshToken(ctx context.Context, identityID, token string) (bool, error)
	// RotateRefreshToken replaces oldToken with newToken only if oldToken is current.
	// Of two concurrent rotations from the same oldToken exactly one returns true.
	RotateRefreshToken(ctx context.Context, identityID, oldToken, newToken string, ttl time.Duration) (bool, error)
	// RevokeRefreshToken empties the slot. Revoking an empty slot is a no-op.
	RevokeRefreshToken(ctx context.Context, identityID string) error
	// BlacklistAccessToken blocks tokenID for remainingTTL. remainingTTL <= 0 is a no-op
	// since the token has already expired.
	BlacklistAccessToken(ctx context.Context, tokenID string, remainingTTL time.Duration) error
	// IsBlacklisted reports whether tokenID is blocked.
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

const (
	refreshPrefix   = "refresh:"
	blacklistPrefix = "blacklist:"
)

func refreshKey(identityID string) string { return refreshPrefix + identityID }

func blacklistKey(tokenID string) string { return blacklistPrefix + tokenID }

// equalIDs compares two token IDs in constant time.
func equalIDs(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
