package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/decisionlog/internal/domain"
)

// ErrNotFound is returned by every store when the addressed row is absent.
var ErrNotFound = errors.New("repository: not found")

// UserRepository exposes the public users table (id, email, role).
type UserRepository interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateRole(ctx context.Context, id, role string) (domain.User, error)
	// Count returns all users when role is empty.
	Count(ctx context.Context, role string) (int64, error)
}

// DecisionRepository persists decisions. Mutations are filtered by owner.
type DecisionRepository interface {
	Create(ctx context.Context, decision domain.Decision) (domain.Decision, error)
	GetByID(ctx context.Context, id string) (domain.Decision, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Decision, error)
	Update(ctx context.Context, id, ownerID string, patch domain.DecisionPatch) (domain.Decision, error)
	Delete(ctx context.Context, id, ownerID string) error
	Count(ctx context.Context) (int64, error)
}

// OptionRepository persists decision options.
type OptionRepository interface {
	Create(ctx context.Context, option domain.Option) (domain.Option, error)
	GetByID(ctx context.Context, id string) (domain.Option, error)
	ListByDecision(ctx context.Context, decisionID string) ([]domain.Option, error)
	Update(ctx context.Context, id string, patch domain.OptionPatch) (domain.Option, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// AuthBackend is the identity provider: Supabase GoTrue or the local
// password backend.
type AuthBackend interface {
	SignUp(ctx context.Context, email, password string) (domain.Session, error)
	SignIn(ctx context.Context, email, password string) (domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, id string) (domain.AuthUser, error)
	// DeleteUser removes the identity; profile rows and owned data cascade.
	DeleteUser(ctx context.Context, id string) error
}

// IdentityRepository stores local password identities.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) (domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (domain.Identity, error)
	GetByID(ctx context.Context, id string) (domain.Identity, error)
	Delete(ctx context.Context, id string) error
}

// RefreshTokenRepository handles locally issued refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) error
	GetByToken(ctx context.Context, token string) (domain.RefreshToken, error)
	Rotate(ctx context.Context, id int64, token string, expiresAt time.Time) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// RevocationStore remembers access tokens that were logged out before expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, token string, until time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}
