package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authcore/internal/autherr"
)

func TestTokenIssuer_IssueAccessAndVerify(t *testing.T) {
	p := NewTestTokenIssuer()

	access, claims, err := p.IssueAccess("u1", "alice@example.com", "s1", 0)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if access == "" || claims.ID == "" {
		t.Fatal("access token or jti empty")
	}
	if claims.ExpiresAt.Time.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	got, err := p.VerifyAccess(access)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if got.Subject != "u1" || got.Email != "alice@example.com" || got.SessionID != "s1" {
		t.Errorf("VerifyAccess: got sub=%q email=%q sid=%q", got.Subject, got.Email, got.SessionID)
	}
	if got.Issuer != "test-issuer" || got.Type != TypeAccess {
		t.Errorf("VerifyAccess: got iss=%q typ=%q", got.Issuer, got.Type)
	}
	if got.IssuedAt == nil {
		t.Error("iat missing")
	}
}

func TestTokenIssuer_IssueRefreshAndVerify(t *testing.T) {
	p := NewTestTokenIssuer()

	refresh, claims, err := p.IssueRefresh("u1", "s1", 0)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if want := time.Now().Add(24 * time.Hour); claims.ExpiresAt.Time.Before(want.Add(-time.Minute)) {
		t.Errorf("refresh expiry = %v, want about %v", claims.ExpiresAt.Time, want)
	}
	got, err := p.VerifyRefresh(refresh)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if got.Subject != "u1" || got.SessionID != "s1" || got.Email != "" {
		t.Errorf("VerifyRefresh: got sub=%q sid=%q email=%q", got.Subject, got.SessionID, got.Email)
	}
}

func TestTokenIssuer_SameSecondTokensDiffer(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewTestTokenIssuer().WithClock(func() time.Time { return fixed })
	a, _, _ := p.IssueRefresh("u1", "s1", time.Hour)
	b, _, _ := p.IssueRefresh("u1", "s1", time.Hour)
	if a == b {
		t.Error("tokens minted in the same second should differ")
	}
}

func TestTokenIssuer_SecretsAreSeparate(t *testing.T) {
	p := NewTestTokenIssuer()
	access, _, _ := p.IssueAccess("u1", "a@example.com", "s1", 0)
	refresh, _, _ := p.IssueRefresh("u1", "s1", 0)

	if _, err := p.VerifyRefresh(access); !errors.Is(err, autherr.ErrTokenInvalidSignature) {
		t.Errorf("VerifyRefresh(access) err = %v, want TokenInvalidSignature", err)
	}
	if _, err := p.VerifyAccess(refresh); !errors.Is(err, autherr.ErrTokenInvalidSignature) {
		t.Errorf("VerifyAccess(refresh) err = %v, want TokenInvalidSignature", err)
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	p := NewTestTokenIssuer()
	past := time.Now().Add(-time.Hour)
	old := p.WithClock(func() time.Time { return past })
	access, _, err := old.IssueAccess("u1", "", "", time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.VerifyAccess(access); !errors.Is(err, autherr.ErrTokenExpired) {
		t.Errorf("VerifyAccess(expired) err = %v, want TokenExpired", err)
	}
}

func TestTokenIssuer_TamperedSignature(t *testing.T) {
	p := NewTestTokenIssuer()
	access, _, _ := p.IssueAccess("u1", "", "", 0)
	parts := strings.Split(access, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	if _, err := p.VerifyAccess(tampered); !errors.Is(err, autherr.ErrTokenInvalidSignature) {
		t.Errorf("VerifyAccess(tampered) err = %v, want TokenInvalidSignature", err)
	}
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	p := NewTestTokenIssuer()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: TypeAccess,
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := p.VerifyAccess(none); !errors.Is(err, autherr.ErrTokenInvalidSignature) {
		t.Errorf("VerifyAccess(alg=none) err = %v, want TokenInvalidSignature", err)
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testAccessSecret))
	if err != nil {
		t.Fatalf("sign HS512: %v", err)
	}
	if _, err := p.VerifyAccess(hs512); !errors.Is(err, autherr.ErrTokenInvalidSignature) {
		t.Errorf("VerifyAccess(HS512) err = %v, want TokenInvalidSignature", err)
	}
}

func TestTokenIssuer_WrongIssuer(t *testing.T) {
	p := NewTestTokenIssuer()
	other, err := NewTokenIssuer(testAccessSecret, testRefreshSecret, "someone-else", 0, 0)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	access, _, _ := other.IssueAccess("u1", "", "", 0)
	if _, err := p.VerifyAccess(access); !errors.Is(err, autherr.ErrTokenMalformed) {
		t.Errorf("VerifyAccess(wrong issuer) err = %v, want TokenMalformed", err)
	}
}

func TestTokenIssuer_Malformed(t *testing.T) {
	p := NewTestTokenIssuer()
	for _, tok := range []string{"", "invalid-token", "a.b.c"} {
		if _, err := p.VerifyAccess(tok); !errors.Is(err, autherr.ErrTokenMalformed) {
			t.Errorf("VerifyAccess(%q) err = %v, want TokenMalformed", tok, err)
		}
	}
}

func TestNewTokenIssuer_Secrets(t *testing.T) {
	testCases := []struct {
		name            string
		access, refresh string
	}{
		{"empty access", "", "r"},
		{"empty refresh", "a", ""},
		{"same", "same", "same"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTokenIssuer(tc.access, tc.refresh, "iss", 0, 0); !errors.Is(err, ErrSecretsInvalid) {
				t.Errorf("err = %v, want ErrSecretsInvalid", err)
			}
		})
	}
	p, err := NewTokenIssuer("a", "b", "iss", 0, 0)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	if p.AccessTTL() != 15*time.Minute || p.RefreshTTL() != 168*time.Hour {
		t.Errorf("default TTLs = %v/%v", p.AccessTTL(), p.RefreshTTL())
	}
}
