package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/smallbiznis/decisionlog/internal/domain"
)

var (
	_ IdentityRepository     = (*PostgresIdentityRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
)

// PostgresIdentityRepo implements IdentityRepository for the local driver.
type PostgresIdentityRepo struct {
	db DB
}

func NewPostgresIdentityRepo(db DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

const identityColumns = `id::text, email, password_hash, created_at`

func scanIdentity(row pgx.Row) (domain.Identity, error) {
	var i domain.Identity
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

func (r *PostgresIdentityRepo) Create(ctx context.Context, identity domain.Identity) (domain.Identity, error) {
	created, err := scanIdentity(r.db.QueryRow(ctx,
		`INSERT INTO auth_identities (id, email, password_hash) VALUES ($1, $2, $3) RETURNING `+identityColumns,
		identity.ID, identity.Email, identity.PasswordHash,
	))
	if isUniqueViolation(err) {
		return domain.Identity{}, fmt.Errorf("create identity: %w", domain.ErrEmailTaken)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("create identity: %w", err)
	}
	return created, nil
}

func (r *PostgresIdentityRepo) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	i, err := scanIdentity(r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM auth_identities WHERE email = $1`, email))
	if err != nil {
		return domain.Identity{}, mapNoRows("get identity by email", err)
	}
	return i, nil
}

func (r *PostgresIdentityRepo) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	i, err := scanIdentity(r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM auth_identities WHERE id = $1`, id))
	if err != nil {
		return domain.Identity{}, mapNoRows("get identity", err)
	}
	return i, nil
}

func (r *PostgresIdentityRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM auth_identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete identity: %w", ErrNotFound)
	}
	return nil
}

// PostgresRefreshTokenRepo implements RefreshTokenRepository.
type PostgresRefreshTokenRepo struct {
	db DB
}

func NewPostgresRefreshTokenRepo(db DB) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

const insertRefreshTokenSQL = `INSERT INTO refresh_tokens (id, user_id, session_id, token, expires_at)
VALUES ($1, $2, $3, $4, $5)`

func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token domain.RefreshToken) error {
	if _, err := r.db.Exec(ctx, insertRefreshTokenSQL, token.ID, token.UserID, token.SessionID, token.Token, token.ExpiresAt); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) GetByToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id::text, session_id::text, token, expires_at, revoked, created_at FROM refresh_tokens WHERE token = $1`,
		token,
	).Scan(&t.ID, &t.UserID, &t.SessionID, &t.Token, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNoRows("get refresh token", err)
	}
	return t, nil
}

func (r *PostgresRefreshTokenRepo) Rotate(ctx context.Context, id int64, token string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE refresh_tokens SET token = $2, expires_at = $3 WHERE id = $1 AND NOT revoked`, id, token, expiresAt)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rotate refresh token: %w", ErrNotFound)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}
