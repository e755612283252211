package interceptors

import (
	"context"
	"testing"

	"authcore/internal/identity/domain"
)

func TestWithPrincipal_RoundTrip(t *testing.T) {
	p := &domain.Principal{IdentityID: "id-1", SessionID: "sess-1"}
	ctx := WithPrincipal(context.Background(), p)

	got, ok := PrincipalFrom(ctx)
	if !ok {
		t.Fatal("PrincipalFrom should return true")
	}
	if got != p {
		t.Errorf("PrincipalFrom = %+v, want %+v", got, p)
	}
}

func TestPrincipalFrom_Missing(t *testing.T) {
	if p, ok := PrincipalFrom(context.Background()); ok || p != nil {
		t.Errorf("PrincipalFrom(empty) = %v, %v; want nil, false", p, ok)
	}
	ctx := WithPrincipal(context.Background(), nil)
	if _, ok := PrincipalFrom(ctx); ok {
		t.Error("PrincipalFrom should reject a nil principal")
	}
}

func TestClientIPFrom(t *testing.T) {
	if got := ClientIPFrom(context.Background()); got != "" {
		t.Errorf("ClientIPFrom(empty) = %q, want empty", got)
	}
	ctx := WithClientIP(context.Background(), "10.0.0.1")
	if got := ClientIPFrom(ctx); got != "10.0.0.1" {
		t.Errorf("ClientIPFrom = %q, want %q", got, "10.0.0.1")
	}
}
