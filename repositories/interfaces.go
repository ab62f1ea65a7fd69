package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sabercon/portal-gateway/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email address
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// List retrieves users with pagination
	List(ctx context.Context, limit, offset int) ([]*models.User, error)

	// UpdateLastLogin stamps the user's last successful login
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// SessionStore holds live sessions and the token blacklist. The concrete
// store is constructed at startup and injected; nothing in the pipeline
// reaches for a process-global client.
type SessionStore interface {
	// Put stores or replaces a session
	Put(ctx context.Context, session *models.Session) error

	// Get retrieves a session; returns nil without error when absent or expired
	Get(ctx context.Context, userID, sessionID string) (*models.Session, error)

	// Delete removes a session; deleting an absent session is not an error
	Delete(ctx context.Context, userID, sessionID string) error

	// Blacklist marks a raw token as revoked until its natural expiry
	Blacklist(ctx context.Context, rawToken string, until time.Time) error

	// IsBlacklisted reports whether a raw token has been revoked
	IsBlacklisted(ctx context.Context, rawToken string) (bool, error)
}
