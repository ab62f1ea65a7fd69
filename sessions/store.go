// Package sessions provides an in-memory session store and token blacklist.
// It replaces the previous process-global cache singleton with an explicitly
// constructed store injected at startup; swapping in an external cache means
// implementing repositories.SessionStore and changing the wiring.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/sabercon/portal-gateway/models"
)

type blacklistEntry struct {
	until time.Time
}

// Store is a TTL-aware in-memory implementation of repositories.SessionStore.
// Safe for concurrent use. Expired entries are dropped lazily on access and
// in bulk by Purge.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*models.Session
	blacklist map[string]blacklistEntry
	now       func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sessions:  make(map[string]*models.Session),
		blacklist: make(map[string]blacklistEntry),
		now:       time.Now,
	}
}

func sessionKey(userID, sessionID string) string {
	return userID + "/" + sessionID
}

// Put stores or replaces a session
func (s *Store) Put(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[sessionKey(session.UserID, session.SessionID)] = &copied
	return nil
}

// Get retrieves a session, updating its last-access stamp. Returns nil for
// absent or expired sessions.
func (s *Store) Get(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(userID, sessionID)
	session, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	now := s.now()
	if !session.ExpiresAt.IsZero() && now.After(session.ExpiresAt) {
		delete(s.sessions, key)
		return nil, nil
	}
	session.LastAccess = now
	copied := *session
	return &copied, nil
}

// Delete removes a session
func (s *Store) Delete(ctx context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey(userID, sessionID))
	return nil
}

// Blacklist marks a raw token as revoked until the given time
func (s *Store) Blacklist(ctx context.Context, rawToken string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[rawToken] = blacklistEntry{until: until}
	return nil
}

// IsBlacklisted reports whether a raw token has been revoked and not yet aged out
func (s *Store) IsBlacklisted(ctx context.Context, rawToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.blacklist[rawToken]
	if !ok {
		return false, nil
	}
	if s.now().After(entry.until) {
		delete(s.blacklist, rawToken)
		return false, nil
	}
	return true, nil
}

// Purge drops all expired sessions and aged-out blacklist entries. Intended
// to be called periodically from a background goroutine.
func (s *Store) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, session := range s.sessions {
		if !session.ExpiresAt.IsZero() && now.After(session.ExpiresAt) {
			delete(s.sessions, key)
		}
	}
	for tok, entry := range s.blacklist {
		if now.After(entry.until) {
			delete(s.blacklist, tok)
		}
	}
}
