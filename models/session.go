package models

import "time"

// Session is the server-side record of an issued token pair. One session per
// login; destroyed on logout or refresh rotation.
type Session struct {
	UserID       string    `json:"userId"`
	SessionID    string    `json:"sessionId"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccess   time.Time `json:"lastAccess"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
