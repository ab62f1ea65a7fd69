package handlers

import (
	"net/http"

	"github.com/sabercon/portal-gateway/config"
	"github.com/sabercon/portal-gateway/utils"
)

// AdminConfigHandler returns the non-secret runtime configuration for
// operators. The signing secret never appears here.
func AdminConfigHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, map[string]interface{}{
			"environment":      cfg.Environment,
			"algorithm":        cfg.Auth.Algorithm,
			"accessTokenTTL":   cfg.Auth.AccessTokenTTL.String(),
			"refreshTokenTTL":  cfg.Auth.RefreshTokenTTL.String(),
			"refreshThreshold": cfg.Auth.RefreshThreshold.String(),
			"allowLegacy":      cfg.Auth.AllowLegacy,
			"cookiePriority":   cfg.Auth.CookiePriority,
		})
	}
}
