package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// rowDB answers every QueryRow with a fixed error.
type rowDB struct{ err error }

func (d rowDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, d.err
}

func (d rowDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, d.err
}

func (d rowDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{err: d.err}
}

func TestIdentityCreateMapsUniqueViolation(t *testing.T) {
	repo := repository.NewPostgresIdentityRepo(rowDB{err: &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "auth_identities_email_key",
	}})

	_, err := repo.Create(context.Background(), domain.Identity{ID: "id", Email: "dup@example.com"})
	require.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestIdentityCreateKeepsOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	repo := repository.NewPostgresIdentityRepo(rowDB{err: boom})

	_, err := repo.Create(context.Background(), domain.Identity{ID: "id", Email: "x@example.com"})
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, domain.ErrEmailTaken)

	_, err = repository.NewPostgresIdentityRepo(rowDB{err: pgx.ErrNoRows}).GetByEmail(context.Background(), "x@example.com")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
