package domain

import "time"

// AuthUser is the identity record held by the auth backend.
type AuthUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Session is a token pair issued by the auth backend. An empty AccessToken
// means the backend is waiting for email confirmation.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	User         AuthUser `json:"user"`
}

// Identity holds local password credentials. users.id references it.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// RefreshToken persists locally issued refresh tokens.
type RefreshToken struct {
	ID        int64
	UserID    string
	SessionID string
	Token     string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}
