package domain

import "time"

// User owns instances, buckets and api keys.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// APIKey is a long-lived opaque credential resolving to its owner.
type APIKey struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Identity is a resolved requester. Components past the auth gateway only
// ever see this, never the raw credential.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
