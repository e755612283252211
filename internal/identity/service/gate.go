package service

import (
	"context"
	"strings"

	"authcore/internal/autherr"
	"authcore/internal/identity/domain"
	"authcore/internal/security"
	"authcore/internal/tokenstore"
)

const bearerPrefix = "bearer "

// Gate turns a presented bearer token into a Principal.
//
// Unauthenticated -> TokenPresented -> SignatureVerified -> NotBlacklisted -> Authenticated.
// Exits: NoToken, TokenMalformed, TokenInvalidSignature, TokenExpired, TokenBlacklisted,
// and DependencyUnavailable when the blacklist cannot be read (the gate never admits on doubt).
type Gate struct {
	tokens *security.TokenIssuer
	store  tokenstore.Store
}

// NewGate returns a Gate verifying access tokens with tokens and checking the blacklist in store.
func NewGate(tokens *security.TokenIssuer, store tokenstore.Store) *Gate {
	return &Gate{tokens: tokens, store: store}
}

// Authenticate parses an Authorization header value and authenticates its bearer token.
func (g *Gate) Authenticate(ctx context.Context, header string) (*domain.Principal, error) {
	token, ok := ExtractBearer(header)
	if !ok {
		return nil, autherr.ErrNoToken
	}
	return g.AuthenticateToken(ctx, token)
}

// AuthenticateToken authenticates a raw access token.
func (g *Gate) AuthenticateToken(ctx context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, autherr.ErrNoToken
	}
	claims, err := g.tokens.VerifyAccess(token)
	if err != nil {
		return nil, err
	}
	tokenID := security.TokenID(token)
	blocked, err := g.store.IsBlacklisted(ctx, tokenID)
	if err != nil {
		// Already tagged DependencyUnavailable by the store.
		return nil, err
	}
	if blocked {
		return nil, autherr.ErrTokenBlacklisted
	}
	p := &domain.Principal{
		IdentityID: claims.Subject,
		Email:      claims.Email,
		SessionID:  claims.SessionID,
		TokenID:    tokenID,
		RawToken:   token,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// ExtractBearer returns the token from "Bearer <token>". The scheme is case-insensitive.
func ExtractBearer(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
