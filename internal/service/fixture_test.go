package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/jwt"
	"github.com/smallbiznis/decisionlog/internal/localauth"
	"github.com/smallbiznis/decisionlog/internal/service"
	"github.com/smallbiznis/decisionlog/internal/testutil/memstore"
)

type fixture struct {
	store     *memstore.Store
	backend   *localauth.Backend
	verifier  *jwt.Verifier
	auth      *service.AuthService
	guard     *service.RoleGuard
	decisions *service.DecisionService
	options   *service.OptionService
	admin     *service.AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	backend, verifier, err := store.AuthBackend()
	require.NoError(t, err)

	logger := zap.NewNop()
	decisions := service.NewDecisionService(store.Decisions(), logger)
	return &fixture{
		store:     store,
		backend:   backend,
		verifier:  verifier,
		auth:      service.NewAuthService(backend, store.Users(), store.Revocations(), logger),
		guard:     service.NewRoleGuard(store.Users(), logger),
		decisions: decisions,
		options:   service.NewOptionService(store.Options(), decisions, logger),
		admin:     service.NewAdminService(store.Users(), store.Decisions(), store.Options(), backend, logger),
	}
}

// register signs up email and returns its principal.
func (f *fixture) register(t *testing.T, email string) domain.Principal {
	t.Helper()
	resp, err := f.auth.Register(context.Background(), email, "password")
	require.NoError(t, err)
	return domain.Principal{ID: resp.UserID}
}

func requireKind(t *testing.T, err error, kind string, status int) *service.Error {
	t.Helper()
	require.Error(t, err)
	svcErr, ok := service.AsError(err)
	require.True(t, ok, "expected service error, got %v", err)
	require.Equal(t, kind, svcErr.Kind)
	require.Equal(t, status, svcErr.Status)
	return svcErr
}

func ptr[T any](v T) *T {
	return &v
}
