// Package authz resolves the roles and permissions of an identity through a short-lived
// read-through cache and decides role/permission requirements against them.
package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"authcore/internal/autherr"
	"authcore/internal/policy/engine"
	roledomain "authcore/internal/role/domain"
)

// DefaultCacheTTL is how long resolved grants are reused before the source is queried again.
const DefaultCacheTTL = 60 * time.Second

// Requirement lists what a caller must hold: any one of Roles and any one of Permissions.
// An empty list places no constraint on that category.
type Requirement struct {
	Roles       []string
	Permissions []string
}

// IsEmpty reports whether the requirement is trivially satisfied.
func (r Requirement) IsEmpty() bool { return len(r.Roles) == 0 && len(r.Permissions) == 0 }

// RequireRoles is shorthand for a role-only requirement.
func RequireRoles(roles ...string) Requirement { return Requirement{Roles: roles} }

// RequirePermissions is shorthand for a permission-only requirement.
func RequirePermissions(perms ...string) Requirement { return Requirement{Permissions: perms} }

// RoleSource is the authority for role assignments and permission grants.
type RoleSource interface {
	GrantsForIdentity(ctx context.Context, identityID string) (*roledomain.Grants, error)
}

// Cache stores resolved grants per identity. A miss returns (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, identityID string) (*roledomain.Grants, bool, error)
	Set(ctx context.Context, identityID string, g *roledomain.Grants, ttl time.Duration) error
}

// Decider evaluates a requirement against resolved grants.
type Decider interface {
	Decide(ctx context.Context, in engine.Input) (engine.Decision, error)
}

// Metrics receives decision and cache lookup outcomes. *metrics.Recorder implements it.
type Metrics interface {
	AuthzDecision(outcome string)
	AuthzCacheLookup(result string)
}

// Options tunes a Resolver. Zero values select the defaults.
type Options struct {
	CacheTTL time.Duration
	// Timeout bounds each cache and source call (default 2s).
	Timeout time.Duration
	Metrics Metrics
	Logger  zerolog.Logger
}

// Resolver answers authorization checks. Store failures deny.
type Resolver struct {
	source  RoleSource
	cache   Cache
	decider Decider
	ttl     time.Duration
	timeout time.Duration
	metrics Metrics
	log     zerolog.Logger
}

// NewResolver returns a Resolver. cache may be nil, in which case every check reads the source.
func NewResolver(source RoleSource, cache Cache, decider Decider, opts Options) *Resolver {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	return &Resolver{
		source:  source,
		cache:   cache,
		decider: decider,
		ttl:     opts.CacheTTL,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
}

// Check reports whether identityID satisfies req. An empty requirement passes without any lookup.
// When the grants cannot be resolved the answer is false with a DependencyUnavailable error.
func (r *Resolver) Check(ctx context.Context, identityID string, req Requirement) (bool, error) {
	dec, err := r.decide(ctx, identityID, req)
	if err != nil {
		return false, err
	}
	return dec.Allowed(), nil
}

// Authorize is Check expressed as an error: nil when allowed, InsufficientRole when a required
// role is missing, otherwise InsufficientPermission.
func (r *Resolver) Authorize(ctx context.Context, identityID string, req Requirement) error {
	dec, err := r.decide(ctx, identityID, req)
	if err != nil {
		return err
	}
	switch {
	case !dec.RolesOK:
		return autherr.ErrInsufficientRole
	case !dec.PermissionsOK:
		return autherr.ErrInsufficientPermission
	}
	return nil
}

// Grants returns the resolved grants for identityID, from the cache when fresh.
func (r *Resolver) Grants(ctx context.Context, identityID string) (*roledomain.Grants, error) {
	if g, ok := r.cached(ctx, identityID); ok {
		return g, nil
	}

	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	g, err := r.source.GrantsForIdentity(sctx, identityID)
	cancel()
	if err != nil {
		return nil, autherr.Unavailable("authz: resolve grants", err)
	}
	if g == nil {
		g = &roledomain.Grants{}
	}

	if r.cache != nil {
		wctx, cancel := context.WithTimeout(ctx, r.timeout)
		if err := r.cache.Set(wctx, identityID, g, r.ttl); err != nil {
			r.log.Warn().Err(err).Str("identity_id", identityID).Msg("authz cache write failed")
		}
		cancel()
	}
	return g, nil
}

func (r *Resolver) decide(ctx context.Context, identityID string, req Requirement) (engine.Decision, error) {
	if req.IsEmpty() {
		r.record("allowed")
		return engine.Decision{RolesOK: true, PermissionsOK: true}, nil
	}
	g, err := r.Grants(ctx, identityID)
	if err != nil {
		r.record("error")
		return engine.Decision{}, err
	}
	dec, err := r.decider.Decide(ctx, engine.Input{
		Roles:               g.Roles,
		Permissions:         g.Permissions,
		RequiredRoles:       req.Roles,
		RequiredPermissions: req.Permissions,
	})
	if err != nil {
		r.record("error")
		return engine.Decision{}, fmt.Errorf("authz: decide: %w", err)
	}
	if dec.Allowed() {
		r.record("allowed")
	} else {
		r.record("denied")
	}
	return dec, nil
}

// cached returns a fresh cache entry. Read failures count as a miss.
func (r *Resolver) cached(ctx context.Context, identityID string) (*roledomain.Grants, bool) {
	if r.cache == nil {
		return nil, false
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	g, ok, err := r.cache.Get(cctx, identityID)
	switch {
	case err != nil:
		r.log.Warn().Err(err).Str("identity_id", identityID).Msg("authz cache read failed, querying source")
		r.lookup("error")
		return nil, false
	case !ok || g == nil:
		r.lookup("miss")
		return nil, false
	}
	r.lookup("hit")
	return g, true
}

func (r *Resolver) record(outcome string) {
	if r.metrics != nil {
		r.metrics.AuthzDecision(outcome)
	}
}

func (r *Resolver) lookup(result string) {
	if r.metrics != nil {
		r.metrics.AuthzCacheLookup(result)
	}
}
