package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authcore/internal/autherr"
)

const (
	// TypeAccess marks an access token in the typ claim.
	TypeAccess = "access"
	// TypeRefresh marks a refresh token in the typ claim.
	TypeRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 168 * time.Hour
)

// ErrSecretsInvalid is returned by NewTokenIssuer when a secret is empty or both secrets are equal.
var ErrSecretsInvalid = errors.New("access and refresh secrets must be non-empty and distinct")

// Claims holds JWT claims for access and refresh tokens.
// Email is set only on access tokens. SessionID binds the token to the login that created it.
type Claims struct {
	jwt.RegisteredClaims
	Type      string `json:"typ"`
	SessionID string `json:"sid,omitempty"`
	Email     string `json:"email,omitempty"`
}

// TokenIssuer issues and verifies HS256 access and refresh tokens. Access and refresh
// tokens are signed with different secrets so a leaked key cannot forge the other kind.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer returns a TokenIssuer. Non-positive TTLs fall back to 15m (access) and 168h (refresh).
func NewTokenIssuer(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" || accessSecret == refreshSecret {
		return nil, ErrSecretsInvalid
	}
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of p that reads the current time from now. Used by tests.
func (p *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *p
	cp.now = now
	return &cp
}

// AccessTTL returns the default access token lifetime.
func (p *TokenIssuer) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the default refresh token lifetime.
func (p *TokenIssuer) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess issues a short-lived access token for identityID. ttl <= 0 uses the default.
func (p *TokenIssuer) IssueAccess(identityID, email, sessionID string, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		ttl = p.accessTTL
	}
	claims, err := p.newClaims(TypeAccess, identityID, sessionID, ttl)
	if err != nil {
		return "", nil, err
	}
	claims.Email = email
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.accessSecret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// IssueRefresh issues a long-lived refresh token for identityID. ttl <= 0 uses the default.
func (p *TokenIssuer) IssueRefresh(identityID, sessionID string, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		ttl = p.refreshTTL
	}
	claims, err := p.newClaims(TypeRefresh, identityID, sessionID, ttl)
	if err != nil {
		return "", nil, err
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.refreshSecret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// VerifyAccess validates an access token's signature, expiry, issuer and type.
// Errors are autherr kinds TokenExpired, TokenInvalidSignature or TokenMalformed.
func (p *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return p.verify(token, p.accessSecret, TypeAccess)
}

// VerifyRefresh validates a refresh token the same way VerifyAccess does, against the refresh secret.
func (p *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return p.verify(token, p.refreshSecret, TypeRefresh)
}

func (p *TokenIssuer) newClaims(typ, identityID, sessionID string, ttl time.Duration) (*Claims, error) {
	jti, err := generateJTI()
	if err != nil {
		return nil, err
	}
	now := p.now().UTC()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   identityID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type:      typ,
		SessionID: sessionID,
	}, nil
}

func (p *TokenIssuer) verify(tokenString string, secret []byte, typ string) (*Claims, error) {
	if tokenString == "" {
		return nil, autherr.ErrTokenMalformed
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid || claims.Subject == "" || claims.Type != typ {
		return nil, autherr.ErrTokenMalformed
	}
	return claims, nil
}

// classify maps jwt parse errors to autherr kinds. Signature failures are checked first:
// the parser verifies the signature before claims, so an expired token with a bad
// signature is reported as a signature failure.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return autherr.Wrap(autherr.TokenMalformed, "token malformed", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return autherr.Wrap(autherr.TokenInvalidSignature, "token signature invalid", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return autherr.Wrap(autherr.TokenExpired, "token expired", err)
	default:
		return autherr.Wrap(autherr.TokenMalformed, "token invalid", err)
	}
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
