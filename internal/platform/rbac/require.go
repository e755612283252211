// Package rbac guards HTTP routes and gRPC methods with role and permission requirements.
package rbac

import (
	"context"
	"net/http"

	"authcore/internal/autherr"
	"authcore/internal/authz"
	"authcore/internal/httpx"
	"authcore/internal/identity/domain"
	"authcore/internal/server/interceptors"
)

// Authorizer decides whether an identity satisfies a requirement. *authz.Resolver implements it.
type Authorizer interface {
	Authorize(ctx context.Context, identityID string, req authz.Requirement) error
}

// Denied observes refused requests (e.g. to emit an authz_denied event). May be nil.
type Denied func(ctx context.Context, p *domain.Principal, req authz.Requirement, err error)

// RequirePrincipal ensures the caller is authenticated and satisfies req.
// Returns the Principal on success; NoToken without one, InsufficientRole/InsufficientPermission
// when refused, DependencyUnavailable when grants cannot be resolved.
func RequirePrincipal(ctx context.Context, az Authorizer, req authz.Requirement) (*domain.Principal, error) {
	p, ok := interceptors.PrincipalFrom(ctx)
	if !ok || p.IdentityID == "" {
		return nil, autherr.ErrNoToken
	}
	if err := az.Authorize(ctx, p.IdentityID, req); err != nil {
		return nil, err
	}
	return p, nil
}

// Require returns middleware answering 401 without a Principal, 403 when the requirement is not met
// and 503 when it cannot be evaluated. It must run after interceptors.RequireAuth.
func Require(az Authorizer, req authz.Requirement, onDenied Denied) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := RequirePrincipal(r.Context(), az, req); err != nil {
				if onDenied != nil {
					p, _ := interceptors.PrincipalFrom(r.Context())
					onDenied(r.Context(), p, req, err)
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireGRPC is RequirePrincipal with the error converted to a gRPC status.
func RequireGRPC(ctx context.Context, az Authorizer, req authz.Requirement) (*domain.Principal, error) {
	p, err := RequirePrincipal(ctx, az, req)
	if err != nil {
		return nil, interceptors.GRPCError(err)
	}
	return p, nil
}
