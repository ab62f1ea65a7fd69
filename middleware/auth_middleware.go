package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sabercon/portal-gateway/config"
	"github.com/sabercon/portal-gateway/policy"
	"github.com/sabercon/portal-gateway/repositories"
	"github.com/sabercon/portal-gateway/token"
	"github.com/sabercon/portal-gateway/utils"
)

var (
	// ErrNoCredential is returned when no token was found at any transport location
	ErrNoCredential = errors.New("no credential")

	// ErrTokenRevoked is returned when the presented token has been blacklisted
	ErrTokenRevoked = errors.New("token revoked")

	// errInternal marks pipeline failures that must surface as 500 even in
	// optional mode
	errInternal = errors.New("auth pipeline failure")
)

// TokenDecoder resolves a raw token string into normalized claims
type TokenDecoder interface {
	Decode(raw string) (*token.DecodedClaims, error)
}

// AuthMiddleware runs the credential pipeline for incoming requests:
// extraction, blacklist check, decode, validation, and optional refresh.
// Policy enforcement is layered on top via Enforce and its shorthands.
type AuthMiddleware struct {
	decoder      TokenDecoder
	sessions     repositories.SessionStore // may be nil: blacklist checks skipped
	refresh      *RefreshCoordinator       // may be nil: no token refresh
	logger       *zap.Logger
	customHeader string
	cookieNames  []string
	now          func() time.Time
}

// NewAuthMiddleware creates the middleware with its injected collaborators
func NewAuthMiddleware(decoder TokenDecoder, sessions repositories.SessionStore, refresh *RefreshCoordinator, cfg config.AuthConfig, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		decoder:      decoder,
		sessions:     sessions,
		refresh:      refresh,
		logger:       logger,
		customHeader: cfg.CustomHeader,
		cookieNames:  cfg.CookiePriority,
		now:          time.Now,
	}
}

// RequireAuth rejects requests without a valid identity. Any non-allow
// outcome short-circuits before the handler runs.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimiddleware.GetReqID(r.Context())

		identity, claims, cred, err := m.authenticate(r)
		if err != nil {
			m.logger.Warn("authentication failed",
				zap.String("request_id", requestID),
				zap.String("source", string(cred.Source)),
				zap.Error(err))
			m.writeAuthError(w, err)
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		ctx = WithCredential(ctx, cred)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", identity.UserID),
			zap.String("role", identity.Role),
			zap.String("format", string(identity.TokenFormat)))

		m.maybeRefresh(w, r, identity, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth resolves an identity when a valid credential is present but
// lets anonymous or invalid requests through without one. Only internal
// pipeline failures still produce an error response.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimiddleware.GetReqID(r.Context())

		identity, claims, cred, err := m.authenticate(r)
		if err != nil {
			if errors.Is(err, errInternal) {
				m.logger.Error("auth pipeline failure",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteInternalServerError(w, "")
				return
			}
			// Absent, malformed, and expired credentials all collapse to an
			// anonymous request here
			if !errors.Is(err, ErrNoCredential) {
				m.logger.Debug("ignoring invalid credential in optional mode",
					zap.String("request_id", requestID),
					zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		ctx = WithCredential(ctx, cred)
		m.maybeRefresh(w, r, identity, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Enforce evaluates a route-declared requirement against the identity in the
// request context. Must run after RequireAuth or OptionalAuth.
func (m *AuthMiddleware) Enforce(req policy.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())

			decision := policy.Evaluate(identity, req)
			if !decision.Allowed {
				requestID := chimiddleware.GetReqID(r.Context())
				fields := []zap.Field{
					zap.String("request_id", requestID),
					zap.String("reason", string(decision.Reason)),
				}
				if identity != nil {
					fields = append(fields, zap.String("sub", identity.UserID), zap.String("role", identity.Role))
				}
				if len(decision.Missing) > 0 {
					fields = append(fields, zap.Strings("missing_permissions", decision.Missing))
				}
				m.logger.Warn("policy denied request", fields...)
				writeDenial(w, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows only identities whose role is in the allow-list
func (m *AuthMiddleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return m.Enforce(policy.Requirement{Roles: roles})
}

// RequirePermission allows only identities carrying every listed permission
func (m *AuthMiddleware) RequirePermission(permissions ...string) func(http.Handler) http.Handler {
	return m.Enforce(policy.Requirement{Permissions: permissions})
}

// authenticate runs extraction, blacklist check, decode, and validation for
// one request. The returned RawCredential is set whenever a token was found,
// even on failure, so callers can log its source.
func (m *AuthMiddleware) authenticate(r *http.Request) (*token.Identity, *token.DecodedClaims, RawCredential, error) {
	cred := ExtractCredential(r, m.customHeader, m.cookieNames)
	if !cred.Present() {
		return nil, nil, cred, ErrNoCredential
	}

	if m.sessions != nil {
		revoked, err := m.sessions.IsBlacklisted(r.Context(), cred.Token)
		if err != nil {
			return nil, nil, cred, fmt.Errorf("%w: blacklist lookup: %v", errInternal, err)
		}
		if revoked {
			return nil, nil, cred, ErrTokenRevoked
		}
	}

	claims, err := m.decoder.Decode(cred.Token)
	if err != nil {
		return nil, nil, cred, err
	}

	// Refresh tokens are credentials for the refresh endpoint only
	if claims.TokenType == token.TypeRefresh {
		return nil, nil, cred, token.ErrTokenMalformed
	}

	identity, err := token.Validate(claims, m.now())
	if err != nil {
		return nil, nil, cred, err
	}

	return identity, claims, cred, nil
}

// maybeRefresh hands a successfully validated request to the refresh
// coordinator. Never called on denial paths; never fires once the request
// context is cancelled.
func (m *AuthMiddleware) maybeRefresh(w http.ResponseWriter, r *http.Request, identity *token.Identity, claims *token.DecodedClaims) {
	if m.refresh == nil {
		return
	}
	m.refresh.MaybeRefresh(r.Context(), w, identity, claims)
}

// writeAuthError maps pipeline errors onto the response taxonomy. The raw
// token and decoded claims are never echoed back.
func (m *AuthMiddleware) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoCredential):
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "unauthenticated", "Missing or invalid authorization")
	case errors.Is(err, ErrTokenRevoked):
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "unauthenticated", "Invalid or expired token")
	case errors.Is(err, token.ErrTokenExpired):
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "token_expired", "Token expired")
	case errors.Is(err, token.ErrMissingClaim):
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "missing_required_claim", "Token missing required claims")
	case errors.Is(err, token.ErrTokenMalformed):
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "malformed_token", "Invalid token")
	default:
		_ = utils.WriteInternalServerError(w, "")
	}
}

// writeDenial maps a policy decision onto the response taxonomy
func writeDenial(w http.ResponseWriter, decision policy.Decision) {
	switch decision.Reason {
	case policy.ReasonInsufficientRole:
		_ = utils.WriteErrorCode(w, http.StatusForbidden, "insufficient_role", "Insufficient role for this resource")
	case policy.ReasonInsufficientPermission:
		_ = utils.WriteErrorCode(w, http.StatusForbidden, "insufficient_permission", "Insufficient permissions for this resource")
	default:
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
	}
}
