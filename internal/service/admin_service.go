package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

const userNotFound = "User not found"

// AdminService backs the /admin routes. Callers are checked by RoleGuard.
type AdminService struct {
	instrumentation
	users     repository.UserRepository
	decisions repository.DecisionRepository
	options   repository.OptionRepository
	backend   repository.AuthBackend
}

func NewAdminService(users repository.UserRepository, decisions repository.DecisionRepository, options repository.OptionRepository, backend repository.AuthBackend, logger *zap.Logger) *AdminService {
	return &AdminService{
		instrumentation: newInstrumentation(logger),
		users:           users,
		decisions:       decisions,
		options:         options,
		backend:         backend,
	}
}

// ListUsers returns every users row.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	ctx, span := s.startSpan(ctx, "AdminService.ListUsers")
	defer span.End()

	users, err := s.users.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, storeError("list users", err, userNotFound)
	}
	return users, nil
}

// UpdateRole sets the role of userID to "user" or "admin".
func (s *AdminService) UpdateRole(ctx context.Context, actor domain.Principal, userID, role string) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "AdminService.UpdateRole")
	defer span.End()

	if err := validateID(userID, "user id"); err != nil {
		return domain.User{}, err
	}
	if !domain.ValidRole(role) {
		return domain.User{}, InvalidRequest("Role must be 'user' or 'admin'")
	}

	user, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, storeError("update role", err, userNotFound)
	}

	s.audit("user.role.updated", "actor_id", actor.ID, "user_id", userID, "role", role)
	return user, nil
}

// DeleteUser removes the auth identity. The users row and everything the
// user owns go with it.
func (s *AdminService) DeleteUser(ctx context.Context, actor domain.Principal, userID string) error {
	ctx, span := s.startSpan(ctx, "AdminService.DeleteUser")
	defer span.End()

	if err := validateID(userID, "user id"); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return storeError("get user", err, userNotFound)
	}

	if err := s.backend.DeleteUser(ctx, userID); err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrNotFound) {
			return NotFound(userNotFound, err)
		}
		return Upstream(err)
	}

	s.audit("user.deleted", "actor_id", actor.ID, "user_id", userID)
	return nil
}

// Dashboard counts users, admins, decisions and options.
func (s *AdminService) Dashboard(ctx context.Context) (domain.Stats, error) {
	ctx, span := s.startSpan(ctx, "AdminService.Dashboard")
	defer span.End()

	var stats domain.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = s.users.Count(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		stats.TotalAdmins, err = s.users.Count(gctx, domain.RoleAdmin)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalDecisions, err = s.decisions.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalOptions, err = s.options.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return domain.Stats{}, fmt.Errorf("dashboard counts: %w", err)
	}
	return stats, nil
}
