// Package policy evaluates route-declared requirements against a resolved
// identity. Evaluation is pure: no I/O, no clock, no shared state.
package policy

import (
	"github.com/sabercon/portal-gateway/token"
)

// Reason explains a deny decision
type Reason string

const (
	ReasonUnauthenticated        Reason = "unauthenticated"
	ReasonInsufficientRole       Reason = "insufficient-role"
	ReasonInsufficientPermission Reason = "insufficient-permission"
)

// Requirement is declared per route at registration time and never mutated.
// Roles is an any-of allow-list; Permissions is all-of. SignedOnly rejects
// identities resolved from the legacy unsigned format.
type Requirement struct {
	Roles       []string
	Permissions []string
	SignedOnly  bool
}

// Empty reports whether the requirement constrains nothing beyond
// authentication itself
func (r Requirement) Empty() bool {
	return len(r.Roles) == 0 && len(r.Permissions) == 0 && !r.SignedOnly
}

// Decision is the outcome of evaluating a requirement
type Decision struct {
	Allowed bool
	Reason  Reason
	// Missing lists the permissions the identity lacked, for logs only;
	// it is never echoed to the client.
	Missing []string
}

// allow is the zero-reason success decision
func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Evaluate checks identity against req. Checks run in a fixed order so the
// deny reason is deterministic: authentication, then role, then permissions.
// Any deny short-circuits.
func Evaluate(identity *token.Identity, req Requirement) Decision {
	if identity == nil {
		return deny(ReasonUnauthenticated)
	}
	if req.SignedOnly && identity.TokenFormat != token.FormatSigned {
		return deny(ReasonUnauthenticated)
	}

	if len(req.Roles) > 0 && !containsRole(req.Roles, identity.Role) {
		return deny(ReasonInsufficientRole)
	}

	// All-of semantics: every required permission must be present. An empty
	// requirement list is vacuously satisfied.
	var missing []string
	for _, required := range req.Permissions {
		if !identity.HasPermission(required) {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		d := deny(ReasonInsufficientPermission)
		d.Missing = missing
		return d
	}

	return allow()
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
