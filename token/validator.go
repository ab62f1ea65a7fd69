package token

import (
	"strings"
	"time"
)

// Identity is the request-scoped projection of validated claims. It is
// attached to the request context by the auth middleware and discarded with
// the request; nothing here is ever persisted.
type Identity struct {
	UserID        string   `json:"userId"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions"`
	InstitutionID string   `json:"institutionId,omitempty"`
	SessionID     string   `json:"sessionId,omitempty"`
	TokenFormat   Format   `json:"-"`
}

// HasPermission reports whether the identity carries the given permission
func (id *Identity) HasPermission(permission string) bool {
	for _, p := range id.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Validate checks expiry and required fields on decoded claims and normalizes
// them into an Identity. Pure transform: no I/O, the caller supplies now.
func Validate(claims *DecodedClaims, now time.Time) (*Identity, error) {
	if claims == nil {
		return nil, ErrTokenMalformed
	}

	// exp strictly in the past fails; tokens without exp do not expire here
	if !claims.ExpiresAt.IsZero() && now.After(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	// Enforced at decode already; rechecked so a hand-built claim set cannot
	// produce a partially populated identity
	if claims.Subject == "" || claims.Email == "" || claims.Role == "" {
		return nil, ErrMissingClaim
	}

	name := claims.Name
	if name == "" {
		name = displayNameFromEmail(claims.Email)
	}
	if name == "" {
		name = claims.Subject
	}

	permissions := make([]string, 0, len(claims.Permissions))
	permissions = append(permissions, claims.Permissions...)

	return &Identity{
		UserID:        claims.Subject,
		Email:         claims.Email,
		Name:          name,
		Role:          claims.Role,
		Permissions:   permissions,
		InstitutionID: claims.InstitutionID,
		SessionID:     claims.SessionID,
		TokenFormat:   claims.Format,
	}, nil
}

func displayNameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found {
		return ""
	}
	return local
}

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0)
}
