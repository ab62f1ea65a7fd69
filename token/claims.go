package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Format identifies which decode path produced a claim set
type Format string

const (
	// FormatSigned marks claims verified against the shared signing secret
	FormatSigned Format = "signed"
	// FormatLegacy marks claims from the unsigned base64(JSON) fallback
	FormatLegacy Format = "legacy-fallback"
)

// Token type claim values. Refresh tokens are rejected everywhere except the
// refresh endpoint.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// signedClaims is the wire shape of JWTs this service issues and accepts
type signedClaims struct {
	jwt.RegisteredClaims
	UserID        string   `json:"userId,omitempty"`
	Email         string   `json:"email"`
	Name          string   `json:"name,omitempty"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions,omitempty"`
	InstitutionID string   `json:"institutionId,omitempty"`
	SessionID     string   `json:"sessionId,omitempty"`
	TokenType     string   `json:"type,omitempty"`
}

// legacyPayload is the flat JSON object carried base64-encoded by the legacy
// issuer. Field names vary between generations of the issuer, hence the
// userId/id pair.
type legacyPayload struct {
	UserID        string   `json:"userId"`
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions"`
	InstitutionID string   `json:"institutionId"`
	SessionID     string   `json:"sessionId"`
	IssuedAt      int64    `json:"iat"`
	ExpiresAt     int64    `json:"exp"`
}

// DecodedClaims is the normalized claim set produced by the decoder,
// independent of which wire format carried it. Subject, Email, and Role are
// never empty after a successful decode.
type DecodedClaims struct {
	Subject       string
	Email         string
	Name          string
	Role          string
	Permissions   []string
	InstitutionID string
	SessionID     string
	TokenType     string
	IssuedAt      time.Time
	ExpiresAt     time.Time // zero when the token carries no expiry
	Format        Format
}

// RemainingTTL returns the time until expiry relative to now. Tokens without
// an expiry report a negative-free, effectively infinite remainder.
func (c *DecodedClaims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return c.ExpiresAt.Sub(now)
}
