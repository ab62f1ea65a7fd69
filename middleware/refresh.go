package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sabercon/portal-gateway/config"
	"github.com/sabercon/portal-gateway/token"
)

// NewTokenHeader is the response header carrying a replacement access token
const NewTokenHeader = "X-New-Token"

// TokenReissuer mints a replacement access token for a validated identity
type TokenReissuer interface {
	Reissue(identity *token.Identity) (string, time.Time, error)
}

// RefreshCoordinator reissues an access token when the presented one is close
// to expiry, attaching the replacement to the response out of band. It runs
// only after successful validation and is strictly best-effort: a failed
// reissue never affects the outcome of the current request.
type RefreshCoordinator struct {
	issuer        TokenReissuer
	threshold     time.Duration
	cookieName    string
	secureCookies bool
	logger        *zap.Logger
	now           func() time.Time
}

// NewRefreshCoordinator creates a coordinator for the configured threshold
func NewRefreshCoordinator(issuer TokenReissuer, cfg config.AuthConfig, logger *zap.Logger) *RefreshCoordinator {
	return &RefreshCoordinator{
		issuer:        issuer,
		threshold:     cfg.RefreshThreshold,
		cookieName:    cfg.CookieName,
		secureCookies: cfg.SecureCookies,
		logger:        logger,
		now:           time.Now,
	}
}

// MaybeRefresh mints and attaches a replacement token when the remaining TTL
// is below the threshold. No-op when the request context is already done, so
// a cancelled request produces no side effects.
func (c *RefreshCoordinator) MaybeRefresh(ctx context.Context, w http.ResponseWriter, identity *token.Identity, claims *token.DecodedClaims) {
	if ctx.Err() != nil {
		return
	}
	if claims == nil || claims.ExpiresAt.IsZero() {
		return
	}
	if claims.RemainingTTL(c.now()) >= c.threshold {
		return
	}

	refreshed, expiresAt, err := c.issuer.Reissue(identity)
	if err != nil {
		c.logger.Warn("token refresh failed",
			zap.String("sub", identity.UserID),
			zap.Error(err))
		return
	}

	w.Header().Set(NewTokenHeader, refreshed)
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    refreshed,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})

	c.logger.Debug("access token refreshed",
		zap.String("sub", identity.UserID),
		zap.Time("new_expiry", expiresAt))
}
