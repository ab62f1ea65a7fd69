package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sabercon/portal-gateway/config"
)

var (
	// ErrTokenMalformed is returned when a token matches no accepted format
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenExpired is returned when a structurally valid token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrMissingClaim is returned when a token decodes but lacks a required claim
	ErrMissingClaim = errors.New("missing required claim")
)

// errUnrecognized signals that a decode strategy does not apply to the raw
// string and the next strategy in the chain should be tried.
var errUnrecognized = errors.New("format not recognized")

type decodeFunc func(raw string) (*DecodedClaims, error)

// Decoder resolves a raw token string into normalized claims. It tries the
// signed format first and, when enabled, falls back to the legacy unsigned
// format. Decoders are stateless and safe for concurrent use.
type Decoder struct {
	secret     []byte
	methods    []string
	strategies []decodeFunc
}

// NewDecoder creates a decoder for the configured secret and algorithm
func NewDecoder(cfg config.AuthConfig) *Decoder {
	d := &Decoder{
		secret:  []byte(cfg.Secret),
		methods: []string{cfg.Algorithm},
	}
	d.strategies = []decodeFunc{d.decodeSigned}
	if cfg.AllowLegacy {
		d.strategies = append(d.strategies, d.decodeLegacy)
	}
	return d
}

// Decode resolves raw into claims via the strategy chain. A strategy that does
// not recognize the format passes to the next; a strategy that recognizes the
// format but finds it invalid terminates the chain. Expiry is deliberately not
// checked here so that both formats share one expiry rule in Validate.
func (d *Decoder) Decode(raw string) (*DecodedClaims, error) {
	if raw == "" {
		return nil, ErrTokenMalformed
	}
	for _, strategy := range d.strategies {
		claims, err := strategy(raw)
		if err == nil {
			return claims, nil
		}
		if errors.Is(err, errUnrecognized) {
			continue
		}
		return nil, err
	}
	return nil, ErrTokenMalformed
}

// decodeSigned verifies raw as a JWT against the shared secret. Signature or
// structure failures mean "not this format"; a verified token with missing
// required claims is a terminal decode failure.
func (d *Decoder) decodeSigned(raw string) (*DecodedClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &signedClaims{},
		func(t *jwt.Token) (interface{}, error) { return d.secret, nil },
		jwt.WithValidMethods(d.methods),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnrecognized, err)
	}

	wire, ok := parsed.Claims.(*signedClaims)
	if !ok {
		return nil, fmt.Errorf("%w: %v", errUnrecognized, err)
	}

	subject := wire.UserID
	if subject == "" {
		subject = wire.RegisteredClaims.Subject
	}
	if subject == "" || wire.Email == "" || wire.Role == "" {
		return nil, fmt.Errorf("%w: signed token must carry subject, email, and role", ErrMissingClaim)
	}

	claims := &DecodedClaims{
		Subject:       subject,
		Email:         wire.Email,
		Name:          wire.Name,
		Role:          wire.Role,
		Permissions:   wire.Permissions,
		InstitutionID: wire.InstitutionID,
		SessionID:     wire.SessionID,
		TokenType:     wire.TokenType,
		Format:        FormatSigned,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}
	return claims, nil
}

// decodeLegacy decodes raw as base64(flat JSON). Unsigned: see the package
// comment for why this is accepted at all.
func (d *Decoder) decodeLegacy(raw string) (*DecodedClaims, error) {
	decoded, err := decodeBase64(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64", errUnrecognized)
	}

	var wire legacyPayload
	if err := json.Unmarshal(decoded, &wire); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object", errUnrecognized)
	}

	subject := wire.UserID
	if subject == "" {
		subject = wire.ID
	}
	if subject == "" || wire.Email == "" || wire.Role == "" {
		return nil, fmt.Errorf("%w: legacy token must carry userId, email, and role", ErrMissingClaim)
	}

	claims := &DecodedClaims{
		Subject:       subject,
		Email:         wire.Email,
		Name:          wire.Name,
		Role:          wire.Role,
		Permissions:   wire.Permissions,
		InstitutionID: wire.InstitutionID,
		SessionID:     wire.SessionID,
		TokenType:     TypeAccess,
		Format:        FormatLegacy,
	}
	if wire.IssuedAt > 0 {
		claims.IssuedAt = timeFromUnix(wire.IssuedAt)
	}
	if wire.ExpiresAt > 0 {
		claims.ExpiresAt = timeFromUnix(wire.ExpiresAt)
	}
	return claims, nil
}

// decodeBase64 accepts both padded and unpadded standard encoding, matching
// what the legacy issuer has produced over time.
func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
