package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

// RoleGuard reads the caller's role from the users table on every request.
type RoleGuard struct {
	instrumentation
	users repository.UserRepository
}

func NewRoleGuard(users repository.UserRepository, logger *zap.Logger) *RoleGuard {
	return &RoleGuard{instrumentation: newInstrumentation(logger), users: users}
}

// Role returns the users row for userID.
func (g *RoleGuard) Role(ctx context.Context, userID string) (domain.User, error) {
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, NotFound("User not found", err)
		}
		return domain.User{}, Upstream(err)
	}
	return user, nil
}

// RequireRole fails with 403 unless the stored role equals role.
func (g *RoleGuard) RequireRole(ctx context.Context, userID, role string) (domain.User, error) {
	ctx, span := g.startSpan(ctx, "RoleGuard.RequireRole")
	defer span.End()

	user, err := g.Role(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, err
	}
	if user.Role != role {
		g.audit("access.denied", "user_id", userID, "required_role", role)
		if role == domain.RoleAdmin {
			return domain.User{}, Forbidden("Admin access required")
		}
		return domain.User{}, Forbidden(fmt.Sprintf("Role '%s' required", role))
	}
	return user, nil
}
