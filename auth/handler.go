// Package auth implements the portal's own token issuance endpoints: login,
// refresh rotation, logout, and the identity echo. Request authentication for
// every other route lives in the middleware package.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sabercon/portal-gateway/config"
	"github.com/sabercon/portal-gateway/middleware"
	"github.com/sabercon/portal-gateway/models"
	"github.com/sabercon/portal-gateway/repositories"
	"github.com/sabercon/portal-gateway/token"
	"github.com/sabercon/portal-gateway/utils"
)

// Handler serves the authentication endpoints
type Handler struct {
	users    repositories.UserRepository
	sessions repositories.SessionStore
	issuer   *token.Issuer
	decoder  *token.Decoder
	cfg      config.AuthConfig
	logger   *zap.Logger
}

// NewHandler creates an auth handler with its injected collaborators
func NewHandler(users repositories.UserRepository, sessions repositories.SessionStore, issuer *token.Issuer, decoder *token.Decoder, cfg config.AuthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		users:    users,
		sessions: sessions,
		issuer:   issuer,
		decoder:  decoder,
		cfg:      cfg,
		logger:   logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type tokenResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	SessionID    string       `json:"sessionId"`
	ExpiresIn    int64        `json:"expiresIn"`
}

// HandleLogin authenticates email/password credentials and issues a token pair
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		var vErr *utils.ValidationError
		if errors.As(err, &vErr) {
			_ = utils.WriteBadRequest(w, vErr.Message, vErr.Details())
			return
		}
		_ = utils.WriteBadRequest(w, "Invalid request", nil)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		// Unknown account and wrong password answer identically
		h.logger.Debug("login lookup failed", zap.Error(err))
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.logger.Warn("login rejected", zap.String("email", req.Email))
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		return
	}

	if !user.IsActive() {
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "user_inactive", "User account is not active")
		return
	}

	pair, err := h.issuer.IssuePair(user)
	if err != nil {
		h.logger.Error("failed to issue token pair", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	now := time.Now()
	if err := h.sessions.Put(r.Context(), &models.Session{
		UserID:       user.ID.String(),
		SessionID:    pair.SessionID,
		Email:        user.Email,
		Role:         user.Role,
		RefreshToken: pair.RefreshToken,
		CreatedAt:    now,
		LastAccess:   now,
		ExpiresAt:    now.Add(h.cfg.RefreshTokenTTL),
	}); err != nil {
		h.logger.Error("failed to store session", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	if err := h.users.UpdateLastLogin(r.Context(), user.ID, now); err != nil {
		h.logger.Warn("failed to stamp last login", zap.String("sub", user.ID.String()), zap.Error(err))
	}

	h.setAuthCookie(w, pair.AccessToken, now.Add(h.cfg.AccessTokenTTL))

	h.logger.Info("login successful",
		zap.String("sub", user.ID.String()),
		zap.String("role", user.Role))

	_ = utils.WriteOK(w, tokenResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    pair.SessionID,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// HandleRefresh exchanges a refresh token for a new pair, rotating the session
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		_ = utils.WriteBadRequest(w, "refreshToken is required", nil)
		return
	}

	revoked, err := h.sessions.IsBlacklisted(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Error("blacklist lookup failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}
	if revoked {
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "invalid_refresh_token", "Invalid refresh token")
		return
	}

	claims, err := h.decoder.Decode(req.RefreshToken)
	if err != nil {
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "invalid_refresh_token", "Invalid refresh token")
		return
	}
	if claims.TokenType != token.TypeRefresh || claims.Format != token.FormatSigned {
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "invalid_refresh_token", "Invalid refresh token")
		return
	}
	if _, err := token.Validate(claims, time.Now()); err != nil {
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "invalid_refresh_token", "Refresh token expired")
		return
	}

	session, err := h.sessions.Get(r.Context(), claims.Subject, claims.SessionID)
	if err != nil {
		h.logger.Error("session lookup failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}
	if session == nil {
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "session_expired", "Session expired")
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "invalid_refresh_token", "Invalid refresh token")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil || !user.IsActive() {
		_ = utils.WriteErrorCode(w, http.StatusUnauthorized, "user_inactive", "User not found or inactive")
		return
	}

	pair, err := h.issuer.IssuePair(user)
	if err != nil {
		h.logger.Error("failed to rotate token pair", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	// Rotation: the old session and refresh token die with the exchange
	_ = h.sessions.Delete(r.Context(), claims.Subject, claims.SessionID)
	until := claims.ExpiresAt
	if until.IsZero() {
		until = time.Now().Add(h.cfg.RefreshTokenTTL)
	}
	_ = h.sessions.Blacklist(r.Context(), req.RefreshToken, until)

	now := time.Now()
	if err := h.sessions.Put(r.Context(), &models.Session{
		UserID:       user.ID.String(),
		SessionID:    pair.SessionID,
		Email:        user.Email,
		Role:         user.Role,
		RefreshToken: pair.RefreshToken,
		CreatedAt:    now,
		LastAccess:   now,
		ExpiresAt:    now.Add(h.cfg.RefreshTokenTTL),
	}); err != nil {
		h.logger.Error("failed to store rotated session", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	h.setAuthCookie(w, pair.AccessToken, now.Add(h.cfg.AccessTokenTTL))

	h.logger.Info("token pair rotated", zap.String("sub", user.ID.String()))

	_ = utils.WriteOK(w, tokenResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    pair.SessionID,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// HandleLogout revokes the presented token and destroys the session.
// Must be mounted behind RequireAuth.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	cred := middleware.CredentialFromContext(r.Context())
	if identity == nil || !cred.Present() {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	until := time.Now().Add(h.cfg.AccessTokenTTL)
	if claims, err := h.decoder.Decode(cred.Token); err == nil && !claims.ExpiresAt.IsZero() {
		until = claims.ExpiresAt
	}
	if err := h.sessions.Blacklist(r.Context(), cred.Token, until); err != nil {
		h.logger.Error("failed to blacklist token", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}
	if identity.SessionID != "" {
		_ = h.sessions.Delete(r.Context(), identity.UserID, identity.SessionID)
	}

	h.clearAuthCookie(w)

	h.logger.Info("logout successful", zap.String("sub", identity.UserID))
	_ = utils.WriteOK(w, map[string]string{"message": "Logout successful"})
}

// HandleMe returns the authenticated identity. Must be mounted behind RequireAuth.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}
	_ = utils.WriteOK(w, identity)
}

func (h *Handler) setAuthCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
