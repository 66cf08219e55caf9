package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
	"github.com/smallbiznis/decisionlog/internal/service"
)

func TestAdminUpdateRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.register(t, "root@example.com")
	user := f.register(t, "user@example.com")

	_, err := f.admin.UpdateRole(ctx, root, user.ID, "superuser")
	svcErr := requireKind(t, err, service.KindInvalidRequest, 400)
	require.Equal(t, "Role must be 'user' or 'admin'", svcErr.Detail)

	_, err = f.admin.UpdateRole(ctx, root, "3fa85f64-5717-4562-b3fc-2c963f66afa6", domain.RoleAdmin)
	requireKind(t, err, service.KindNotFound, 404)

	updated, err := f.admin.UpdateRole(ctx, root, user.ID, domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, updated.Role)

	users, err := f.admin.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestAdminDeleteUserCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.register(t, "root@example.com")
	victim := f.register(t, "victim@example.com")

	decision, err := f.decisions.Create(ctx, victim, service.CreateDecisionInput{Title: "mine"})
	require.NoError(t, err)
	_, err = f.options.Create(ctx, victim, service.CreateOptionInput{DecisionID: decision.ID, OptionText: "a"})
	require.NoError(t, err)

	require.NoError(t, f.admin.DeleteUser(ctx, root, victim.ID))

	_, err = f.store.Users().GetByID(ctx, victim.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	stats, err := f.admin.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Stats{TotalUsers: 1}, stats)

	err = f.admin.DeleteUser(ctx, root, victim.ID)
	requireKind(t, err, service.KindNotFound, 404)
}

func TestAdminDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.register(t, "root@example.com")
	alice := f.register(t, "alice@example.com")
	_, err := f.store.Users().UpdateRole(ctx, root.ID, domain.RoleAdmin)
	require.NoError(t, err)

	decision, err := f.decisions.Create(ctx, alice, service.CreateDecisionInput{Title: "one"})
	require.NoError(t, err)
	_, err = f.decisions.Create(ctx, alice, service.CreateDecisionInput{Title: "two"})
	require.NoError(t, err)
	for _, text := range []string{"a", "b", "c"} {
		_, err = f.options.Create(ctx, alice, service.CreateOptionInput{DecisionID: decision.ID, OptionText: text})
		require.NoError(t, err)
	}

	stats, err := f.admin.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Stats{TotalUsers: 2, TotalAdmins: 1, TotalDecisions: 2, TotalOptions: 3}, stats)
}
