package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sabercon/portal-gateway/config"
	"github.com/sabercon/portal-gateway/models"
	"github.com/sabercon/portal-gateway/policy"
	"github.com/sabercon/portal-gateway/repositories"
	"github.com/sabercon/portal-gateway/sessions"
	"github.com/sabercon/portal-gateway/token"
	"github.com/sabercon/portal-gateway/utils"
)

const testSecret = "middleware-test-secret"

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Secret:           testSecret,
		Algorithm:        "HS256",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		RefreshThreshold: 5 * time.Minute,
		CookieName:       "auth_token",
		CookiePriority:   []string{"token", "auth_token", "authToken"},
		CustomHeader:     "X-Auth-Token",
		AllowLegacy:      true,
	}
}

func newTestMiddleware(t *testing.T, store *sessions.Store) *AuthMiddleware {
	t.Helper()
	cfg := testAuthConfig()
	// Avoid wrapping a typed nil *sessions.Store in the interface: the
	// middleware treats a nil interface as "no session store".
	var sessionStore repositories.SessionStore
	if store != nil {
		sessionStore = store
	}
	return NewAuthMiddleware(token.NewDecoder(cfg), sessionStore, nil, cfg, zap.NewNop())
}

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func accessTokenClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"userId":      "user-1",
		"email":       "ana@school.example",
		"name":        "Ana",
		"role":        models.RoleTeacher,
		"permissions": []string{"courses.view", "courses.edit"},
		"sessionId":   "sess_1",
		"type":        "access",
		"iat":         time.Now().Unix(),
		"exp":         time.Now().Add(15 * time.Minute).Unix(),
	}
}

// identityEchoHandler reports the resolved identity, or anonymous
func identityEchoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil {
			_ = utils.WriteOK(w, map[string]string{"subject": "anonymous"})
			return
		}
		_ = utils.WriteOK(w, map[string]string{"subject": identity.UserID, "role": identity.Role})
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var resp utils.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func echoSubject(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Data["subject"]
}

func TestRequireAuth(t *testing.T) {
	t.Run("valid bearer token reaches the handler with an identity", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signTestToken(t, accessTokenClaims()))
		rec := httptest.NewRecorder()

		m.RequireAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", echoSubject(t, rec))
	})

	t.Run("valid token via custom header", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Auth-Token", signTestToken(t, accessTokenClaims()))
		rec := httptest.NewRecorder()

		m.RequireAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("legacy token via cookie", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		payload := `{"userId":"u-legacy","email":"old@school.example","role":"STUDENT"}`
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{
			Name:  "auth_token",
			Value: base64.StdEncoding.EncodeToString([]byte(payload)),
		})
		rec := httptest.NewRecorder()

		m.RequireAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u-legacy", echoSubject(t, rec))
	})

	t.Run("no credential is rejected", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		m.RequireAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthenticated", decodeError(t, rec).Error)
	})

	t.Run("literal null cookie counts as no credential", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "token", Value: "null"})
		rec := httptest.NewRecorder()

		m.RequireAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthenticated", decodeError(t, rec).Error)
	})

	t.Run("garbage token is rejected as malformed", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()

		m.RequireAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "malformed_token", decodeError(t, rec).Error)
	})

	t.Run("expired token is rejected with its own code", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		claims := accessTokenClaims()
		claims["exp"] = time.Now().Add(-time.Minute).Unix()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signTestToken(t, claims))
		rec := httptest.NewRecorder()

		m.RequireAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "token_expired", decodeError(t, rec).Error)
	})

	t.Run("signed token without email is rejected as missing claim", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		claims := accessTokenClaims()
		delete(claims, "email")
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signTestToken(t, claims))
		rec := httptest.NewRecorder()

		m.RequireAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing_required_claim", decodeError(t, rec).Error)
	})

	t.Run("refresh token cannot be used as an access credential", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		claims := accessTokenClaims()
		claims["type"] = "refresh"
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signTestToken(t, claims))
		rec := httptest.NewRecorder()

		m.RequireAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "malformed_token", decodeError(t, rec).Error)
	})

	t.Run("blacklisted token is rejected", func(t *testing.T) {
		store := sessions.NewStore()
		m := newTestMiddleware(t, store)
		raw := signTestToken(t, accessTokenClaims())
		require.NoError(t, store.Blacklist(context.Background(), raw, time.Now().Add(time.Hour)))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+raw)
		rec := httptest.NewRecorder()

		m.RequireAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthenticated", decodeError(t, rec).Error)
	})
}

func TestOptionalAuth(t *testing.T) {
	t.Run("anonymous request passes through", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		m.OptionalAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", echoSubject(t, rec))
	})

	t.Run("malformed token degrades to anonymous", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()

		m.OptionalAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", echoSubject(t, rec))
	})

	t.Run("expired token degrades to anonymous", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		claims := accessTokenClaims()
		claims["exp"] = time.Now().Add(-time.Minute).Unix()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signTestToken(t, claims))
		rec := httptest.NewRecorder()

		m.OptionalAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", echoSubject(t, rec))
	})

	t.Run("valid token attaches an identity", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signTestToken(t, accessTokenClaims()))
		rec := httptest.NewRecorder()

		m.OptionalAuth(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", echoSubject(t, rec))
	})
}

func TestEnforce(t *testing.T) {
	serve := func(t *testing.T, m *AuthMiddleware, guard func(http.Handler) http.Handler, claims jwt.MapClaims) *httptest.ResponseRecorder {
		t.Helper()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signTestToken(t, claims))
		rec := httptest.NewRecorder()
		m.RequireAuth(guard(identityEchoHandler())).ServeHTTP(rec, r)
		return rec
	}

	t.Run("role in the allow-list passes", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		rec := serve(t, m, m.RequireRole(models.RoleSystemAdmin, models.RoleTeacher), accessTokenClaims())
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("role outside the allow-list is forbidden", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		claims := accessTokenClaims()
		claims["role"] = models.RoleStudent
		rec := serve(t, m, m.RequireRole(models.RoleSystemAdmin, models.RoleTeacher), claims)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "insufficient_role", decodeError(t, rec).Error)
	})

	t.Run("all required permissions pass", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		rec := serve(t, m, m.RequirePermission("courses.view", "courses.edit"), accessTokenClaims())
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("one missing permission is forbidden", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		rec := serve(t, m, m.RequirePermission("courses.view", "users.delete"), accessTokenClaims())

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "insufficient_permission", decodeError(t, rec).Error)
	})

	t.Run("signed-only requirement rejects legacy identities", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		payload := `{"userId":"u-legacy","email":"old@school.example","role":"SYSTEM_ADMIN"}`
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Auth-Token", base64.StdEncoding.EncodeToString([]byte(payload)))
		rec := httptest.NewRecorder()

		guard := m.Enforce(policy.Requirement{SignedOnly: true})
		m.RequireAuth(guard(identityEchoHandler())).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthenticated", decodeError(t, rec).Error)
	})

	t.Run("enforce without a resolved identity is unauthenticated", func(t *testing.T) {
		m := newTestMiddleware(t, nil)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		m.Enforce(policy.Requirement{})(identityEchoHandler()).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthenticated", decodeError(t, rec).Error)
	})
}
