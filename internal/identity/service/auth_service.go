// Package service implements the authentication flows (signup, login, refresh, logout,
// password reset and change) and the bearer-token gate.
package service

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"authcore/internal/autherr"
	"authcore/internal/credential"
	"authcore/internal/identity/domain"
	"authcore/internal/identity/repository"
	"authcore/internal/security"
	sessiondomain "authcore/internal/session/domain"
	teldomain "authcore/internal/telemetry/domain"
	"authcore/internal/tokenstore"
)

// resetDeliveryTimeout bounds one detached reset token issue plus mail send.
const resetDeliveryTimeout = 30 * time.Second

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// SessionRegistry is the subset of the session registry the auth flows drive.
type SessionRegistry interface {
	Create(ctx context.Context, identityID string, dev sessiondomain.Device) (*sessiondomain.Session, error)
	IsActive(ctx context.Context, id string) (bool, error)
	Invalidate(ctx context.Context, id string) error
	InvalidateAllForIdentity(ctx context.Context, identityID string) (int64, error)
	InvalidateOthers(ctx context.Context, identityID, keepID string) (int64, error)
}

// Mailer delivers password reset links.
type Mailer interface {
	SendResetEmail(ctx context.Context, address, link string) error
}

// Observer is told about every auth outcome. Implementations must not block for long.
type Observer interface {
	Observe(ctx context.Context, ev *teldomain.AuthEvent)
}

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
	Identity         domain.Summary
}

// Deps are the collaborators of AuthService. Mailer and Observer may be nil.
type Deps struct {
	Identities repository.Repository
	Vault      *credential.Vault
	Tokens     *security.TokenIssuer
	Store      tokenstore.Store
	Sessions   SessionRegistry
	Mailer     Mailer
	Observer   Observer
	Logger     zerolog.Logger
}

// Options tune AuthService.
type Options struct {
	// ResetURLBase is the link prefix for reset emails; the token is appended as ?token=.
	ResetURLBase string
	// StoreTimeout bounds identity repository calls. <= 0 uses 2s.
	StoreTimeout time.Duration
}

// AuthService runs the authentication flows. It holds no per-request state and is safe for concurrent use.
type AuthService struct {
	identities repository.Repository
	vault      *credential.Vault
	tokens     *security.TokenIssuer
	store      tokenstore.Store
	sessions   SessionRegistry
	mailer     Mailer
	observer   Observer
	log        zerolog.Logger

	resetURLBase string
	timeout      time.Duration
	now          func() time.Time

	// deliveries tracks detached reset sends.
	deliveries sync.WaitGroup
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(deps Deps, opts Options) *AuthService {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 2 * time.Second
	}
	return &AuthService{
		identities:   deps.Identities,
		vault:        deps.Vault,
		tokens:       deps.Tokens,
		store:        deps.Store,
		sessions:     deps.Sessions,
		mailer:       deps.Mailer,
		observer:     deps.Observer,
		log:          deps.Logger,
		resetURLBase: opts.ResetURLBase,
		timeout:      opts.StoreTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Signup creates an identity with the given email and password.
func (s *AuthService) Signup(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil, autherr.New(autherr.InvalidInput, "invalid email format")
	}
	if err := credential.ValidatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.identityByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, autherr.ErrEmailAlreadyRegistered
	}
	hash, err := s.vault.Hash(password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	ident := &domain.Identity{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.identities.Create(rctx, ident); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, autherr.ErrEmailAlreadyRegistered
		}
		return nil, autherr.Unavailable("identity: create", err)
	}
	s.observe(ctx, teldomain.EventSignup, ident.ID, "", "")
	return ident, nil
}

// Login verifies email and password, opens a session for dev and returns a token pair bound to it.
// Unknown email and wrong password are indistinguishable: both fail with InvalidCredentials after
// one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, email, password string, dev sessiondomain.Device) (*TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.vault.VerifyNothing(password)
		s.observe(ctx, teldomain.EventLoginFailed, "", "", "missing_credentials")
		return nil, autherr.ErrInvalidCredentials
	}
	ident, err := s.identityByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		s.vault.VerifyNothing(password)
		s.observe(ctx, teldomain.EventLoginFailed, "", "", "invalid_credentials")
		return nil, autherr.ErrInvalidCredentials
	}
	if !s.vault.Verify(password, ident.PasswordHash) {
		s.observe(ctx, teldomain.EventLoginFailed, ident.ID, "", "invalid_credentials")
		return nil, autherr.ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, ident.ID, dev)
	if err != nil {
		return nil, err
	}
	pair, err := s.mintPair(ident, sess.ID)
	if err != nil {
		s.abandonSession(ctx, sess.ID)
		return nil, err
	}
	if err := s.store.SetCurrentRefreshToken(ctx, ident.ID, pair.RefreshToken, s.tokens.RefreshTTL()); err != nil {
		s.abandonSession(ctx, sess.ID)
		return nil, err
	}
	s.observe(ctx, teldomain.EventLoginSucceeded, ident.ID, sess.ID, "")
	return pair, nil
}

// Refresh exchanges a current refresh token for a new pair. The presented token stops being current;
// presenting it again fails with RefreshTokenStale. The access token minted alongside it is not revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, autherr.ErrNoToken
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.observe(ctx, teldomain.EventRefreshRejected, "", "", string(autherr.KindOf(err)))
		return nil, err
	}
	identityID := claims.Subject

	if claims.SessionID != "" {
		active, err := s.sessions.IsActive(ctx, claims.SessionID)
		if err != nil {
			return nil, err
		}
		if !active {
			s.observe(ctx, teldomain.EventRefreshRejected, identityID, claims.SessionID, "session_invalid")
			return nil, autherr.ErrRefreshTokenStale
		}
	}

	ident, err := s.identityByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, autherr.ErrRefreshTokenStale
	}

	pair, err := s.mintPair(ident, claims.SessionID)
	if err != nil {
		return nil, err
	}
	rotated, err := s.store.RotateRefreshToken(ctx, identityID, refreshToken, pair.RefreshToken, s.tokens.RefreshTTL())
	if err != nil {
		return nil, err
	}
	if !rotated {
		s.observe(ctx, teldomain.EventRefreshRejected, identityID, claims.SessionID, "stale")
		return nil, autherr.ErrRefreshTokenStale
	}
	s.observe(ctx, teldomain.EventRefreshSucceeded, identityID, claims.SessionID, "")
	return pair, nil
}

// Logout revokes everything p can use: the presented access token, the refresh slot and the session
// the token was minted for (every session of the identity when the token names none).
// Every step runs even if an earlier one fails; failures are logged and the first is returned.
func (s *AuthService) Logout(ctx context.Context, p *domain.Principal) error {
	if p == nil {
		return autherr.ErrNoToken
	}
	var first error
	record := func(step string, err error) {
		if err == nil {
			return
		}
		s.log.Warn().Err(err).Str("step", step).Str("identity_id", p.IdentityID).Msg("logout step failed")
		if first == nil {
			first = err
		}
	}

	record("blacklist", s.store.BlacklistAccessToken(ctx, p.TokenID, p.RemainingTTL(s.now())))
	record("revoke_refresh", s.store.RevokeRefreshToken(ctx, p.IdentityID))
	if p.SessionID != "" {
		err := s.sessions.Invalidate(ctx, p.SessionID)
		if autherr.KindOf(err) == autherr.SessionNotFound {
			err = nil
		}
		record("invalidate_session", err)
	} else {
		_, err := s.sessions.InvalidateAllForIdentity(ctx, p.IdentityID)
		record("invalidate_all_sessions", err)
	}

	s.observe(ctx, teldomain.EventLogout, p.IdentityID, p.SessionID, "")
	return first
}

// ForgotPassword sends a reset link when email belongs to an identity. It reports nothing back:
// the caller cannot tell whether the address is registered, so every failure is only logged.
// Token issue and delivery run detached from the request so both branches return after the
// identity lookup alone.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) {
	email = normalizeEmail(email)
	if email == "" {
		return
	}
	ident, err := s.identityByEmail(ctx, email)
	if err != nil {
		s.log.Error().Err(err).Msg("forgot password: identity lookup failed")
		return
	}
	if ident == nil {
		return
	}
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resetDeliveryTimeout)
		defer cancel()
		s.deliverReset(dctx, ident)
	}()
}

// WaitDeliveries blocks until every detached reset delivery has finished.
func (s *AuthService) WaitDeliveries() {
	s.deliveries.Wait()
}

func (s *AuthService) deliverReset(ctx context.Context, ident *domain.Identity) {
	token, err := s.vault.IssueResetToken(ctx, ident.ID)
	if err != nil {
		s.log.Error().Err(err).Str("identity_id", ident.ID).Msg("forgot password: issue reset token failed")
		return
	}
	s.observe(ctx, teldomain.EventPasswordResetSent, ident.ID, "", "")
	if s.mailer == nil {
		s.log.Warn().Str("identity_id", ident.ID).Msg("forgot password: no mailer configured")
		return
	}
	if err := s.mailer.SendResetEmail(ctx, ident.Email, s.resetLink(token)); err != nil {
		s.log.Error().Err(err).Str("identity_id", ident.ID).Msg("forgot password: send reset email failed")
	}
}

// ResetPassword consumes a reset token and sets a new password. Every session of the identity is
// invalidated and the refresh slot emptied; those cleanup failures are logged since the password
// has already changed.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := credential.ValidatePassword(newPassword); err != nil {
		return err
	}
	identityID, err := s.vault.ConsumeResetToken(ctx, token)
	if err != nil {
		return err
	}
	hash, err := s.vault.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.updatePasswordHash(ctx, identityID, hash); err != nil {
		return err
	}
	if _, err := s.sessions.InvalidateAllForIdentity(ctx, identityID); err != nil {
		s.log.Error().Err(err).Str("identity_id", identityID).Msg("reset password: invalidate sessions failed")
	}
	if err := s.store.RevokeRefreshToken(ctx, identityID); err != nil {
		s.log.Error().Err(err).Str("identity_id", identityID).Msg("reset password: revoke refresh token failed")
	}
	s.observe(ctx, teldomain.EventPasswordReset, identityID, "", "")
	return nil
}

// ChangePassword replaces the password of p after checking current, then invalidates every other session.
func (s *AuthService) ChangePassword(ctx context.Context, p *domain.Principal, current, newPassword string) error {
	ident, err := s.identityByID(ctx, p.IdentityID)
	if err != nil {
		return err
	}
	if ident == nil || !s.vault.Verify(current, ident.PasswordHash) {
		return autherr.ErrInvalidCredentials
	}
	if err := credential.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.vault.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.updatePasswordHash(ctx, ident.ID, hash); err != nil {
		return err
	}
	if p.SessionID != "" {
		_, err = s.sessions.InvalidateOthers(ctx, ident.ID, p.SessionID)
	} else {
		_, err = s.sessions.InvalidateAllForIdentity(ctx, ident.ID)
	}
	if err != nil {
		s.log.Error().Err(err).Str("identity_id", ident.ID).Msg("change password: invalidate sessions failed")
	}
	s.observe(ctx, teldomain.EventPasswordChanged, ident.ID, p.SessionID, "")
	return nil
}

// Me returns the public view of the authenticated identity.
func (s *AuthService) Me(ctx context.Context, p *domain.Principal) (*domain.Summary, error) {
	ident, err := s.identityByID(ctx, p.IdentityID)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, autherr.ErrInvalidCredentials
	}
	sum := ident.Summary()
	return &sum, nil
}

func (s *AuthService) mintPair(ident *domain.Identity, sessionID string) (*TokenPair, error) {
	access, accessClaims, err := s.tokens.IssueAccess(ident.ID, ident.Email, sessionID, 0)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := s.tokens.IssueRefresh(ident.ID, sessionID, 0)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
		SessionID:        sessionID,
		Identity:         ident.Summary(),
	}, nil
}

// abandonSession invalidates a session whose login could not complete.
func (s *AuthService) abandonSession(ctx context.Context, sessionID string) {
	if err := s.sessions.Invalidate(ctx, sessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("login: abandon session failed")
	}
}

func (s *AuthService) identityByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ident, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, autherr.Unavailable("identity: get by email", err)
	}
	return ident, nil
}

func (s *AuthService) identityByID(ctx context.Context, id string) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ident, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return nil, autherr.Unavailable("identity: get by id", err)
	}
	return ident, nil
}

func (s *AuthService) updatePasswordHash(ctx context.Context, id, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.identities.UpdatePasswordHash(ctx, id, hash); err != nil {
		return autherr.Unavailable("identity: update password", err)
	}
	return nil
}

func (s *AuthService) resetLink(token string) string {
	sep := "?"
	if strings.Contains(s.resetURLBase, "?") {
		sep = "&"
	}
	return s.resetURLBase + sep + "token=" + url.QueryEscape(token)
}

func (s *AuthService) observe(ctx context.Context, t teldomain.EventType, identityID, sessionID, reason string) {
	if s.observer == nil {
		return
	}
	s.observer.Observe(ctx, &teldomain.AuthEvent{
		Type:       t,
		IdentityID: identityID,
		SessionID:  sessionID,
		Reason:     reason,
		Source:     "auth_service",
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
