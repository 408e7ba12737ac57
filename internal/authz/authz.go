// Package authz decides whether an identity may act on a buyer record.
//
// The ownership capability lives in a casbin model: any authenticated identity
// may read and create, only the owner may update or delete.
package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"github.com/gofrs/uuid/v5"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
)

// Action is an operation on a buyer record.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const object = "buyer"

const modelText = `
[request_definition]
r = sub, owner, obj, act

[policy_definition]
p = role, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.obj == p.obj && r.act == p.act && (p.role == "authenticated" || (p.role == "owner" && r.sub == r.owner))
`

var policies = [][]string{
	{"authenticated", object, string(ActionRead)},
	{"authenticated", object, string(ActionCreate)},
	{"owner", object, string(ActionUpdate)},
	{"owner", object, string(ActionDelete)},
}

// Authorizer evaluates the ownership capability. It holds no per-request state.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

// New builds the enforcer from the embedded model and policies.
func New() (*Authorizer, error) {
	m, err := casbinmodel.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("authz model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz enforcer: %w", err)
	}
	for _, p := range policies {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("authz policy %v: %w", p, err)
		}
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// Allowed reports whether actor may perform act on a record owned by owner.
func (a *Authorizer) Allowed(actor, owner uuid.UUID, act Action) (bool, error) {
	if actor == uuid.Nil {
		return false, nil
	}
	return a.enforcer.Enforce(actor.String(), owner.String(), object, string(act))
}

// Authorize maps the decision onto the error taxonomy.
func (a *Authorizer) Authorize(actor, owner uuid.UUID, act Action) error {
	if actor == uuid.Nil {
		return errs.ErrUnauthenticated
	}
	ok, err := a.Allowed(actor, owner, act)
	if err != nil {
		return fmt.Errorf("authz enforce: %w", err)
	}
	if !ok {
		return errs.ErrForbidden
	}
	return nil
}
