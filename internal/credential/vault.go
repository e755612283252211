// Package credential hashes and verifies passwords and runs the one-time password reset token flow.
package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"authcore/internal/autherr"
	"authcore/internal/security"
)

const (
	// resetTokenBytes is the entropy of a reset token before hex encoding.
	resetTokenBytes = 32

	defaultResetTTL = time.Hour
)

// Vault hashes and verifies passwords and issues and consumes reset tokens.
// Only SHA-256 hashes of reset tokens are stored; the plaintext is returned once to the caller.
type Vault struct {
	hasher *security.Hasher
	resets ResetStore
	ttl    time.Duration
}

// NewVault returns a Vault. resetTTL <= 0 uses 1h.
func NewVault(hasher *security.Hasher, resets ResetStore, resetTTL time.Duration) *Vault {
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}
	return &Vault{hasher: hasher, resets: resets, ttl: resetTTL}
}

// Hash returns a salted bcrypt hash of password.
func (v *Vault) Hash(password string) (string, error) {
	h, err := v.hasher.Hash([]byte(password))
	if errors.Is(err, security.ErrEmptyPassword) {
		return "", autherr.New(autherr.WeakInput, "password must not be empty")
	}
	if err != nil {
		return "", autherr.Wrap(autherr.WeakInput, "password cannot be hashed", err)
	}
	return h, nil
}

// Verify reports whether password matches hash. It never errors; mismatches and malformed hashes are false.
func (v *Vault) Verify(password, hash string) bool {
	return v.hasher.Verify([]byte(password), hash)
}

// VerifyNothing burns one comparison's worth of work. Used when no hash exists for the login email.
func (v *Vault) VerifyNothing(password string) {
	v.hasher.CompareDummy([]byte(password))
}

// IssueResetToken creates a reset token for identityID, replacing any earlier one, and returns the plaintext.
func (v *Vault) IssueResetToken(ctx context.Context, identityID string) (string, error) {
	if identityID == "" {
		return "", autherr.New(autherr.InvalidInput, "identity id required")
	}
	token, err := security.GenerateOpaqueToken(resetTokenBytes)
	if err != nil {
		return "", err
	}
	if err := v.resets.Save(ctx, identityID, hashResetToken(token), v.ttl); err != nil {
		return "", autherr.Unavailable("credential: save reset token", err)
	}
	return token, nil
}

// ConsumeResetToken deletes the reset token and returns its identity. Absent or expired tokens
// fail with ResetTokenInvalid; a token can be consumed at most once.
func (v *Vault) ConsumeResetToken(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", autherr.ErrResetTokenInvalid
	}
	identityID, ok, err := v.resets.Take(ctx, hashResetToken(plaintext))
	if err != nil {
		return "", autherr.Unavailable("credential: take reset token", err)
	}
	if !ok {
		return "", autherr.ErrResetTokenInvalid
	}
	return identityID, nil
}

func hashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
