package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/config"
	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

// EnsureAdmin promotes ADMIN_EMAIL to admin on start, creating the identity
// if needed. It does nothing when no admin credentials are configured.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, backend repository.AuthBackend, users repository.UserRepository, logger *zap.Logger) {
	if cfg.AdminEmail == "" {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, backend, users, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, backend repository.AuthBackend, users repository.UserRepository, logger *zap.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return fmt.Errorf("admin bootstrap missing required config")
	}

	session, err := backend.SignUp(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if errors.Is(err, domain.ErrEmailTaken) {
		session, err = backend.SignIn(ctx, cfg.AdminEmail, cfg.AdminPassword)
	}
	if err != nil {
		return fmt.Errorf("bootstrap admin identity: %w", err)
	}
	userID := session.User.ID
	if userID == "" {
		return fmt.Errorf("bootstrap admin identity: backend returned no user id")
	}

	existing, err := users.GetByID(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if _, err := users.Create(ctx, domain.User{ID: userID, Email: cfg.AdminEmail, Role: domain.RoleAdmin}); err != nil {
			return fmt.Errorf("bootstrap create admin row: %w", err)
		}
	case err != nil:
		return fmt.Errorf("bootstrap lookup admin row: %w", err)
	case existing.Role == domain.RoleAdmin:
		return nil
	default:
		if _, err := users.UpdateRole(ctx, userID, domain.RoleAdmin); err != nil {
			return fmt.Errorf("bootstrap promote admin: %w", err)
		}
	}

	if logger != nil {
		logger.Info("bootstrap admin ensured",
			zap.String("email", cfg.AdminEmail),
			zap.String("user_id", userID),
		)
	}
	return nil
}
