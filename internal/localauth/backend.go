// Package localauth is the auth backend used with the postgres driver. It
// keeps password identities next to the application tables and signs access
// tokens with the shared secret the Verifier checks.
package localauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/config"
	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/jwt"
	"github.com/smallbiznis/decisionlog/internal/password"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

var _ repository.AuthBackend = (*Backend)(nil)

// Backend implements repository.AuthBackend on local tables.
type Backend struct {
	identities   repository.IdentityRepository
	refresh      repository.RefreshTokenRepository
	hasher       *password.Hasher
	generator    *jwt.Generator
	verifier     *jwt.Verifier
	snowflake    *snowflake.Node
	refreshTTL   time.Duration
	refreshBytes int
	decoyHash    string
	logger       *zap.Logger
	tracer       trace.Tracer
}

// New wires dependencies.
func New(identities repository.IdentityRepository, refresh repository.RefreshTokenRepository, hasher *password.Hasher, generator *jwt.Generator, verifier *jwt.Verifier, node *snowflake.Node, cfg config.Config, logger *zap.Logger) (*Backend, error) {
	decoy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("decoy hash: %w", err)
	}
	return &Backend{
		identities:   identities,
		refresh:      refresh,
		hasher:       hasher,
		generator:    generator,
		verifier:     verifier,
		snowflake:    node,
		refreshTTL:   cfg.RefreshTokenTTL,
		refreshBytes: cfg.RefreshTokenBytes,
		decoyHash:    decoy,
		logger:       logger,
		tracer:       otel.Tracer("github.com/smallbiznis/decisionlog/internal/localauth"),
	}, nil
}

func (b *Backend) SignUp(ctx context.Context, email, pw string) (domain.Session, error) {
	ctx, span := b.tracer.Start(ctx, "localauth.SignUp")
	defer span.End()

	if _, err := b.identities.GetByEmail(ctx, email); err == nil {
		return domain.Session{}, domain.ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		span.RecordError(err)
		return domain.Session{}, fmt.Errorf("lookup identity: %w", err)
	}

	hash, err := b.hasher.Hash(pw)
	if err != nil {
		return domain.Session{}, fmt.Errorf("hash password: %w", err)
	}

	identity, err := b.identities.Create(ctx, domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	})
	if errors.Is(err, domain.ErrEmailTaken) {
		// Lost a race with a concurrent signup for the same email.
		return domain.Session{}, domain.ErrEmailTaken
	}
	if err != nil {
		span.RecordError(err)
		return domain.Session{}, fmt.Errorf("create identity: %w", err)
	}

	return b.issueSession(ctx, identity, uuid.NewString())
}

func (b *Backend) SignIn(ctx context.Context, email, pw string) (domain.Session, error) {
	ctx, span := b.tracer.Start(ctx, "localauth.SignIn")
	defer span.End()

	identity, err := b.identities.GetByEmail(ctx, email)
	if err != nil {
		// Keep unknown emails as slow as wrong passwords.
		_ = b.hasher.Verify(pw, b.decoyHash)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Session{}, domain.ErrInvalidCredentials
		}
		span.RecordError(err)
		return domain.Session{}, fmt.Errorf("lookup identity: %w", err)
	}

	if err := b.hasher.Verify(pw, identity.PasswordHash); err != nil {
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	return b.issueSession(ctx, identity, uuid.NewString())
}

func (b *Backend) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	ctx, span := b.tracer.Start(ctx, "localauth.Refresh")
	defer span.End()

	stored, err := b.refresh.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Session{}, domain.ErrRefreshInvalid
		}
		return domain.Session{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	if stored.Revoked || time.Now().After(stored.ExpiresAt) {
		return domain.Session{}, domain.ErrRefreshInvalid
	}

	identity, err := b.identities.GetByID(ctx, stored.UserID)
	if err != nil {
		return domain.Session{}, domain.ErrRefreshInvalid
	}

	next := randomString(b.refreshBytes)
	if err := b.refresh.Rotate(ctx, stored.ID, next, time.Now().Add(b.refreshTTL)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Session{}, domain.ErrRefreshInvalid
		}
		span.RecordError(err)
		return domain.Session{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	access, expiresAt, err := b.generator.GenerateAccessToken(identity.ID, identity.Email, stored.SessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("generate access token: %w", err)
	}
	return newSession(identity, access, next, expiresAt), nil
}

// SignOut revokes every refresh token of the token's subject.
func (b *Backend) SignOut(ctx context.Context, accessToken string) error {
	claims, err := b.verifier.Verify(ctx, accessToken)
	if err != nil {
		return err
	}
	if err := b.refresh.RevokeAllForUser(ctx, claims.Subject); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func (b *Backend) GetUser(ctx context.Context, id string) (domain.AuthUser, error) {
	identity, err := b.identities.GetByID(ctx, id)
	if err != nil {
		return domain.AuthUser{}, fmt.Errorf("get identity: %w", err)
	}
	return authUser(identity), nil
}

// DeleteUser removes the identity; the schema cascades the rest.
func (b *Backend) DeleteUser(ctx context.Context, id string) error {
	if err := b.identities.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	b.log().Info("identity deleted", zap.String("user_id", id))
	return nil
}

func (b *Backend) issueSession(ctx context.Context, identity domain.Identity, sessionID string) (domain.Session, error) {
	access, expiresAt, err := b.generator.GenerateAccessToken(identity.ID, identity.Email, sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken := randomString(b.refreshBytes)
	record := domain.RefreshToken{
		ID:        b.snowflake.Generate().Int64(),
		UserID:    identity.ID,
		SessionID: sessionID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(b.refreshTTL),
	}
	if err := b.refresh.Create(ctx, record); err != nil {
		return domain.Session{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return newSession(identity, access, refreshToken, expiresAt), nil
}

func newSession(identity domain.Identity, access, refresh string, expiresAt time.Time) domain.Session {
	return domain.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(time.Until(expiresAt).Seconds()),
		User:         authUser(identity),
	}
}

func authUser(identity domain.Identity) domain.AuthUser {
	return domain.AuthUser{
		ID:           identity.ID,
		Email:        identity.Email,
		UserMetadata: map[string]any{},
		CreatedAt:    identity.CreatedAt,
	}
}

func (b *Backend) log() *zap.Logger {
	if b.logger != nil {
		return b.logger
	}
	return zap.L()
}

func randomString(n int) string {
	if n <= 0 {
		n = 32
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
