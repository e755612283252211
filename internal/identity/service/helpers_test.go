package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"authcore/internal/autherr"
	"authcore/internal/credential"
	"authcore/internal/identity/domain"
	"authcore/internal/identity/repository"
	"authcore/internal/security"
	sessiondomain "authcore/internal/session/domain"
	sessionrepo "authcore/internal/session/repository"
	sessionservice "authcore/internal/session/service"
	teldomain "authcore/internal/telemetry/domain"
	"authcore/internal/tokenstore"
)

const (
	aliceEmail    = "alice@example.com"
	alicePassword = "Passw0rd!"
	resetBase     = "https://app.example/reset"
)

var testDevice = sessiondomain.Device{Name: "laptop", IP: "10.0.0.1", UserAgent: "test-agent"}

type captureMailer struct {
	mu    sync.Mutex
	sent  []sentMail
	err   error
	calls int
	// delay simulates a slow relay.
	delay time.Duration
}

type sentMail struct{ address, link string }

func (m *captureMailer) SendResetEmail(_ context.Context, address, link string) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{address, link})
	return nil
}

func (m *captureMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no reset email sent")
	return m.sent[len(m.sent)-1]
}

type captureObserver struct {
	mu     sync.Mutex
	events []teldomain.AuthEvent
}

func (o *captureObserver) Observe(_ context.Context, ev *teldomain.AuthEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, *ev)
}

func (o *captureObserver) types() []teldomain.EventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]teldomain.EventType, len(o.events))
	for i, e := range o.events {
		out[i] = e.Type
	}
	return out
}

// downStore fails the selected operations with DependencyUnavailable and delegates the rest.
type downStore struct {
	tokenstore.Store
	blacklist, revoke, set bool
}

var errRedisDown = errors.New("redis: connection refused")

func (s *downStore) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if s.blacklist {
		return false, autherr.Unavailable("tokenstore: exists", errRedisDown)
	}
	return s.Store.IsBlacklisted(ctx, tokenID)
}

func (s *downStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if s.blacklist {
		return autherr.Unavailable("tokenstore: set", errRedisDown)
	}
	return s.Store.BlacklistAccessToken(ctx, tokenID, ttl)
}

func (s *downStore) RevokeRefreshToken(ctx context.Context, identityID string) error {
	if s.revoke {
		return autherr.Unavailable("tokenstore: del", errRedisDown)
	}
	return s.Store.RevokeRefreshToken(ctx, identityID)
}

func (s *downStore) SetCurrentRefreshToken(ctx context.Context, identityID, token string, ttl time.Duration) error {
	if s.set {
		return autherr.Unavailable("tokenstore: set", errRedisDown)
	}
	return s.Store.SetCurrentRefreshToken(ctx, identityID, token, ttl)
}

type harness struct {
	svc        *AuthService
	gate       *Gate
	tokens     *security.TokenIssuer
	identities *repository.MemoryRepository
	store      *downStore
	sessions   *sessionservice.Registry
	mailer     *captureMailer
	observer   *captureObserver
}

// forgot requests a reset for email and waits for the detached delivery.
func (h *harness) forgot(email string) {
	h.svc.ForgotPassword(context.Background(), email)
	h.svc.WaitDeliveries()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tokens := security.NewTestTokenIssuer()
	store := &downStore{Store: tokenstore.NewMemoryStore()}
	h := &harness{
		tokens:     tokens,
		identities: repository.NewMemoryRepository(),
		store:      store,
		sessions:   sessionservice.NewRegistry(sessionrepo.NewMemoryRepository(), time.Second),
		mailer:     &captureMailer{},
		observer:   &captureObserver{},
	}
	vault := credential.NewVault(security.NewHasher(4), credential.NewMemoryResetStore(), time.Hour)
	h.svc = NewAuthService(Deps{
		Identities: h.identities,
		Vault:      vault,
		Tokens:     tokens,
		Store:      store,
		Sessions:   h.sessions,
		Mailer:     h.mailer,
		Observer:   h.observer,
		Logger:     zerolog.Nop(),
	}, Options{ResetURLBase: resetBase, StoreTimeout: time.Second})
	h.gate = NewGate(tokens, store)
	return h
}

func (h *harness) signup(t *testing.T, email, password string) *domain.Identity {
	t.Helper()
	ident, err := h.svc.Signup(context.Background(), email, password)
	require.NoError(t, err)
	return ident
}

func (h *harness) login(t *testing.T, email, password string) *TokenPair {
	t.Helper()
	pair, err := h.svc.Login(context.Background(), email, password, testDevice)
	require.NoError(t, err)
	return pair
}

func (h *harness) authenticate(t *testing.T, access string) *domain.Principal {
	t.Helper()
	p, err := h.gate.Authenticate(context.Background(), "Bearer "+access)
	require.NoError(t, err)
	return p
}

func requireKind(t *testing.T, err error, kind autherr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, autherr.KindOf(err), "err = %v", err)
}
