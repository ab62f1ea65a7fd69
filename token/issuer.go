package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sabercon/portal-gateway/config"
	"github.com/sabercon/portal-gateway/models"
)

// TokenPair is an access/refresh pair bound to one session
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
	ExpiresIn    int64  `json:"expiresIn"` // access token lifetime in seconds
}

// Issuer mints signed tokens with the shared secret. It only ever produces
// the signed format; legacy tokens come from the old issuer and are accepted
// but never minted here.
type Issuer struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates an issuer for the configured secret and algorithm
func NewIssuer(cfg config.AuthConfig) *Issuer {
	return &Issuer{
		secret:     []byte(cfg.Secret),
		method:     jwt.GetSigningMethod(cfg.Algorithm),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}
}

// IssuePair mints a fresh access/refresh pair for a user under a new session ID
func (i *Issuer) IssuePair(user *models.User) (*TokenPair, error) {
	sessionID := fmt.Sprintf("sess_%s_%s", user.ID, uuid.NewString())
	now := i.now()

	institutionID := ""
	if user.InstitutionID != nil {
		institutionID = user.InstitutionID.String()
	}

	access, err := i.sign(signedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		UserID:        user.ID.String(),
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role,
		Permissions:   user.Permissions,
		InstitutionID: institutionID,
		SessionID:     sessionID,
		TokenType:     TypeAccess,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := i.sign(signedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
		UserID:        user.ID.String(),
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role,
		Permissions:   user.Permissions,
		InstitutionID: institutionID,
		SessionID:     sessionID,
		TokenType:     TypeRefresh,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
		ExpiresIn:    int64(i.accessTTL.Seconds()),
	}, nil
}

// Reissue mints a replacement access token for an already validated identity,
// preserving its session ID. Used by the refresh coordinator near expiry.
func (i *Issuer) Reissue(identity *Identity) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.accessTTL)

	signed, err := i.sign(signedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:        identity.UserID,
		Email:         identity.Email,
		Name:          identity.Name,
		Role:          identity.Role,
		Permissions:   identity.Permissions,
		InstitutionID: identity.InstitutionID,
		SessionID:     identity.SessionID,
		TokenType:     TypeAccess,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to reissue access token: %w", err)
	}
	return signed, expiresAt, nil
}

func (i *Issuer) sign(claims signedClaims) (string, error) {
	return jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
}
