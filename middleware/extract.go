package middleware

import (
	"net/http"
	"strings"
)

// CredentialSource tags where a raw token was found
type CredentialSource string

const (
	SourceAuthorizationHeader CredentialSource = "authorization-header"
	SourceCustomHeader        CredentialSource = "custom-header"
	SourceCookie              CredentialSource = "cookie"
)

// RawCredential is a token string plus where it came from. Ephemeral: created
// per request and discarded after decoding.
type RawCredential struct {
	Token  string
	Source CredentialSource
	Cookie string // cookie name when Source == SourceCookie
}

// Present reports whether a token was found at any transport location
func (c RawCredential) Present() bool {
	return c.Token != ""
}

// ExtractCredential returns the first non-empty token found, trying the
// Authorization header, then the custom header, then each cookie name in
// priority order. Finding nothing is not an error; callers decide whether an
// absent credential is fatal.
func ExtractCredential(r *http.Request, customHeader string, cookieNames []string) RawCredential {
	if tok := extractBearerToken(r); tok != "" {
		return RawCredential{Token: tok, Source: SourceAuthorizationHeader}
	}

	if customHeader != "" {
		if tok := strings.TrimSpace(r.Header.Get(customHeader)); tok != "" {
			return RawCredential{Token: tok, Source: SourceCustomHeader}
		}
	}

	for _, name := range cookieNames {
		cookie, err := r.Cookie(name)
		if err != nil {
			continue
		}
		// Clients have been observed serializing a null token into the
		// cookie as the literal string "null"; treat it as absent.
		if cookie.Value == "" || cookie.Value == "null" {
			continue
		}
		return RawCredential{Token: cookie.Value, Source: SourceCookie, Cookie: name}
	}

	return RawCredential{}
}

// extractBearerToken extracts the Bearer token from the Authorization header.
// A "Bearer" prefix with an empty remainder counts as no credential.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
