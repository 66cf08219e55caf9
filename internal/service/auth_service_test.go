package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
	"github.com/smallbiznis/decisionlog/internal/service"
	"github.com/smallbiznis/decisionlog/internal/testutil/memstore"
)

func TestRegisterCreatesUserRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.auth.Register(ctx, "  New@Example.com ", "password")
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "new@example.com", resp.Email)
	require.Equal(t, domain.RoleUser, resp.Role)

	user, err := f.store.Users().GetByID(ctx, resp.UserID)
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, user.Role)
	require.Equal(t, "new@example.com", user.Email)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, "not-an-email", "password")
	requireKind(t, err, service.KindInvalidRequest, 400)

	_, err = f.auth.Register(ctx, "a@b.c", "")
	requireKind(t, err, service.KindInvalidRequest, 400)

	f.register(t, "dup@example.com")
	_, err = f.auth.Register(ctx, "dup@example.com", "password")
	svcErr := requireKind(t, err, service.KindInvalidRequest, 400)
	require.Equal(t, "User already registered", svcErr.Detail)
}

type pendingConfirmationBackend struct {
	repository.AuthBackend
}

func (pendingConfirmationBackend) SignUp(ctx context.Context, email, password string) (domain.Session, error) {
	return domain.Session{User: domain.AuthUser{ID: "5b0f3a6e-8d7c-4f0e-9b35-6f1c3f7b2a10", Email: email}}, nil
}

type rejectingBackend struct {
	repository.AuthBackend
}

func (rejectingBackend) SignUp(ctx context.Context, email, password string) (domain.Session, error) {
	return domain.Session{}, &domain.UpstreamError{Status: 422, Message: "Password should be at least 6 characters"}
}

func TestRegisterPendingConfirmation(t *testing.T) {
	store := memstore.New()
	auth := service.NewAuthService(pendingConfirmationBackend{}, store.Users(), nil, zap.NewNop())

	_, err := auth.Register(context.Background(), "wait@example.com", "password")
	svcErr := requireKind(t, err, service.KindInvalidRequest, 400)
	require.Equal(t, "Email confirmation required. Please check your email to verify your account.", svcErr.Detail)

	user, err := store.Users().GetByID(context.Background(), "5b0f3a6e-8d7c-4f0e-9b35-6f1c3f7b2a10")
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, user.Role)
}

func TestRegisterPassesUpstreamMessage(t *testing.T) {
	auth := service.NewAuthService(rejectingBackend{}, memstore.New().Users(), nil, zap.NewNop())

	_, err := auth.Register(context.Background(), "short@example.com", "pw")
	svcErr := requireKind(t, err, service.KindUpstream, 400)
	require.Equal(t, "Password should be at least 6 characters", svcErr.Detail)
}

func TestLoginReadsRoleFromUsersTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	principal := f.register(t, "boss@example.com")

	resp, err := f.auth.Login(ctx, "boss@example.com", "password")
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, resp.Role)

	_, err = f.store.Users().UpdateRole(ctx, principal.ID, domain.RoleAdmin)
	require.NoError(t, err)

	resp, err = f.auth.Login(ctx, "BOSS@example.com", "password")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, resp.Role)
	require.Equal(t, principal.ID, resp.UserID)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	f := newFixture(t)
	f.register(t, "user@example.com")

	for _, creds := range [][2]string{
		{"user@example.com", "wrong"},
		{"ghost@example.com", "password"},
	} {
		_, err := f.auth.Login(context.Background(), creds[0], creds[1])
		svcErr := requireKind(t, err, service.KindUnauthorized, 401)
		require.Equal(t, "Invalid email or password", svcErr.Detail)
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	login, err := f.auth.Register(ctx, "r@example.com", "password")
	require.NoError(t, err)

	_, err = f.auth.Refresh(ctx, "  ")
	svcErr := requireKind(t, err, service.KindInvalidRequest, 400)
	require.Equal(t, "Refresh token not provided", svcErr.Detail)

	_, err = f.auth.Refresh(ctx, "bogus")
	svcErr = requireKind(t, err, service.KindUnauthorized, 401)
	require.Equal(t, "Failed to refresh token", svcErr.Detail)

	pair, err := f.auth.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEqual(t, login.RefreshToken, pair.RefreshToken)
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	principal := f.register(t, "me@example.com")

	me, err := f.auth.Me(ctx, principal)
	require.NoError(t, err)
	require.Equal(t, principal.ID, me.ID)
	require.Equal(t, "me@example.com", me.Email)
	require.Equal(t, domain.RoleUser, me.Role)
	require.NotNil(t, me.UserMetadata)

	_, err = f.auth.Me(ctx, domain.Principal{ID: "3fa85f64-5717-4562-b3fc-2c963f66afa6"})
	svcErr := requireKind(t, err, service.KindNotFound, 404)
	require.Equal(t, "User not found", svcErr.Detail)
}

func TestLogoutRevokesAccessAndRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	login, err := f.auth.Register(ctx, "bye@example.com", "password")
	require.NoError(t, err)
	claims, err := f.verifier.Verify(ctx, login.AccessToken)
	require.NoError(t, err)

	err = f.auth.Logout(ctx, domain.Principal{ID: login.UserID}, login.AccessToken, claims.Expiry)
	require.NoError(t, err)

	revoked, err := f.store.Revocations().IsRevoked(ctx, login.AccessToken)
	require.NoError(t, err)
	require.True(t, revoked)

	_, err = f.auth.Refresh(ctx, login.RefreshToken)
	requireKind(t, err, service.KindUnauthorized, 401)
}

type failingRevocations struct{}

func (failingRevocations) Revoke(ctx context.Context, token string, until time.Time) error {
	return errors.New("redis down")
}

func (failingRevocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	return false, errors.New("redis down")
}

func TestLogoutFailsWhenRevocationFails(t *testing.T) {
	store := memstore.New()
	backend, _, err := store.AuthBackend()
	require.NoError(t, err)
	auth := service.NewAuthService(backend, store.Users(), failingRevocations{}, zap.NewNop())

	err = auth.Logout(context.Background(), domain.Principal{ID: "u"}, "token", time.Now().Add(time.Hour))
	require.ErrorContains(t, err, "redis down")
	_, ok := service.AsError(err)
	require.False(t, ok)
}
