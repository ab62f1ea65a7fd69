package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabercon/portal-gateway/models"
)

func TestIssuePair(t *testing.T) {
	cfg := testAuthConfig()
	issuer := NewIssuer(cfg)
	decoder := NewDecoder(cfg)

	user := &models.User{
		ID:          uuid.New(),
		Email:       "ana@school.example",
		Name:        "Ana",
		Role:        models.RoleTeacher,
		Permissions: []string{"courses.view", "courses.edit"},
		Status:      models.UserStatusActive,
	}

	pair, err := issuer.IssuePair(user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.SessionID)
	assert.Equal(t, int64(cfg.AccessTokenTTL.Seconds()), pair.ExpiresIn)

	access, err := decoder.Decode(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, FormatSigned, access.Format)
	assert.Equal(t, TypeAccess, access.TokenType)
	assert.Equal(t, user.ID.String(), access.Subject)
	assert.Equal(t, user.Email, access.Email)
	assert.Equal(t, user.Role, access.Role)
	assert.Equal(t, user.Permissions, access.Permissions)
	assert.Equal(t, pair.SessionID, access.SessionID)
	assert.WithinDuration(t, time.Now().Add(cfg.AccessTokenTTL), access.ExpiresAt, 5*time.Second)

	refresh, err := decoder.Decode(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, refresh.TokenType)
	assert.Equal(t, pair.SessionID, refresh.SessionID)
	assert.WithinDuration(t, time.Now().Add(cfg.RefreshTokenTTL), refresh.ExpiresAt, 5*time.Second)
}

func TestReissue(t *testing.T) {
	cfg := testAuthConfig()
	issuer := NewIssuer(cfg)
	decoder := NewDecoder(cfg)

	identity := &Identity{
		UserID:      "u1",
		Email:       "ana@school.example",
		Name:        "Ana",
		Role:        models.RoleTeacher,
		Permissions: []string{"courses.view"},
		SessionID:   "sess_u1_abc",
	}

	raw, expiresAt, err := issuer.Reissue(identity)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(cfg.AccessTokenTTL), expiresAt, 5*time.Second)

	claims, err := decoder.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeAccess, claims.TokenType)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "sess_u1_abc", claims.SessionID)

	// Session survives the reissue so the stored session stays addressable
	validated, err := Validate(claims, time.Now())
	require.NoError(t, err)
	assert.Equal(t, identity.SessionID, validated.SessionID)
}
