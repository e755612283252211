// Package engine decides role and permission requirements with an embedded OPA Rego policy.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

const decisionQuery = "data.authcore.authz.decision"

// authzPolicy grants when any required role is held and any required permission is held.
// An empty requirement in a category passes that category.
const authzPolicy = `package authcore.authz

default roles_ok := false

roles_ok if count(input.required_roles) == 0

roles_ok if {
	some r in input.required_roles
	r in input.roles
}

default permissions_ok := false

permissions_ok if count(input.required_permissions) == 0

permissions_ok if {
	some p in input.required_permissions
	p in input.permissions
}

decision := {
	"roles_ok": roles_ok,
	"permissions_ok": permissions_ok,
}
`

// Input is what the caller holds and what the route requires.
type Input struct {
	Roles               []string
	Permissions         []string
	RequiredRoles       []string
	RequiredPermissions []string
}

// Decision is the evaluated outcome. RolesOK and PermissionsOK are reported separately so
// callers can tell a missing role from a missing permission.
type Decision struct {
	RolesOK       bool
	PermissionsOK bool
}

// Allowed reports whether both categories passed.
func (d Decision) Allowed() bool { return d.RolesOK && d.PermissionsOK }

// RegoDecider evaluates the authorization policy. The query is compiled once and is safe
// for concurrent use.
type RegoDecider struct {
	query rego.PreparedEvalQuery
}

// NewRegoDecider compiles the built-in policy.
func NewRegoDecider(ctx context.Context) (*RegoDecider, error) {
	return NewRegoDeciderWithPolicy(ctx, authzPolicy)
}

// NewRegoDeciderWithPolicy compiles module in place of the built-in policy. The module must define
// data.authcore.authz.decision with roles_ok and permissions_ok booleans.
func NewRegoDeciderWithPolicy(ctx context.Context, module string) (*RegoDecider, error) {
	q, err := rego.New(
		rego.Query(decisionQuery),
		rego.Module("authz.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile authz policy: %w", err)
	}
	return &RegoDecider{query: q}, nil
}

// Decide evaluates in. Any evaluation failure is returned as an error with a zero (deny) Decision.
func (d *RegoDecider) Decide(ctx context.Context, in Input) (Decision, error) {
	rs, err := d.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"roles":                toValues(in.Roles),
		"permissions":          toValues(in.Permissions),
		"required_roles":       toValues(in.RequiredRoles),
		"required_permissions": toValues(in.RequiredPermissions),
	}))
	if err != nil {
		return Decision{}, fmt.Errorf("eval authz policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, errors.New("authz policy returned no result")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("authz policy returned %T", rs[0].Expressions[0].Value)
	}
	rolesOK, ok1 := obj["roles_ok"].(bool)
	permsOK, ok2 := obj["permissions_ok"].(bool)
	if !ok1 || !ok2 {
		return Decision{}, errors.New("authz policy decision is missing roles_ok or permissions_ok")
	}
	return Decision{RolesOK: rolesOK, PermissionsOK: permsOK}, nil
}

// HealthCheck evaluates a fixed input through the prepared query.
func (d *RegoDecider) HealthCheck(ctx context.Context) error {
	dec, err := d.Decide(ctx, Input{Roles: []string{"user"}, RequiredRoles: []string{"user"}})
	if err != nil {
		return err
	}
	if !dec.Allowed() {
		return errors.New("authz policy denied the health check input")
	}
	return nil
}

func toValues(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
