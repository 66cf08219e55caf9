package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

const emailConfirmationRequired = "Email confirmation required. Please check your email to verify your account."

// AuthService fronts the auth backend and keeps the users table in step.
type AuthService struct {
	instrumentation
	backend     repository.AuthBackend
	users       repository.UserRepository
	revocations repository.RevocationStore
}

// NewAuthService wires dependencies. revocations may be nil.
func NewAuthService(backend repository.AuthBackend, users repository.UserRepository, revocations repository.RevocationStore, logger *zap.Logger) *AuthService {
	return &AuthService{
		instrumentation: newInstrumentation(logger),
		backend:         backend,
		users:           users,
		revocations:     revocations,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return InvalidRequest("A valid email address is required")
	}
	if password == "" {
		return InvalidRequest("Password is required")
	}
	return nil
}

// Register creates the identity and its users row with role "user".
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	session, err := s.backend.SignUp(ctx, email, password)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, InvalidRequest("User already registered")
		}
		return nil, Upstream(err)
	}

	if session.User.ID != "" {
		profile := domain.User{ID: session.User.ID, Email: email, Role: domain.RoleUser}
		if _, err := s.users.Create(ctx, profile); err != nil {
			s.log().Warn("create users row failed", zap.String("user_id", session.User.ID), zap.Error(err))
		}
	}

	if session.AccessToken == "" {
		return nil, InvalidRequest(emailConfirmationRequired)
	}

	s.audit("user.registered", "user_id", session.User.ID)
	return &AuthResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		UserID:       session.User.ID,
		Email:        session.User.Email,
		Role:         domain.RoleUser,
	}, nil
}

// Login authenticates with email and password. Every failure reads the same.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	session, err := s.backend.SignIn(ctx, normalizeEmail(email), password)
	if err != nil {
		span.RecordError(err)
		s.audit("user.login.failed", "email", normalizeEmail(email))
		return nil, Unauthorized("Invalid email or password", err)
	}
	if session.AccessToken == "" {
		return nil, Unauthorized("Invalid email or password", nil)
	}

	role := s.roleOrDefault(ctx, session.User.ID)
	s.audit("user.login.success", "user_id", session.User.ID)
	return &AuthResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		UserID:       session.User.ID,
		Email:        session.User.Email,
		Role:         role,
	}, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, InvalidRequest("Refresh token not provided")
	}

	session, err := s.backend.Refresh(ctx, refreshToken)
	if err != nil {
		span.RecordError(err)
		return nil, Unauthorized("Failed to refresh token", err)
	}
	if session.AccessToken == "" {
		return nil, Unauthorized("Failed to refresh token", nil)
	}

	return &RefreshResponse{AccessToken: session.AccessToken, RefreshToken: session.RefreshToken}, nil
}

// Me returns the caller's identity together with the stored role.
func (s *AuthService) Me(ctx context.Context, principal domain.Principal) (*MeResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Me")
	defer span.End()

	user, err := s.backend.GetUser(ctx, principal.ID)
	if err != nil {
		span.RecordError(err)
		return nil, NotFound("User not found", err)
	}

	metadata := user.UserMetadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &MeResponse{
		ID:           user.ID,
		Email:        user.Email,
		Role:         s.roleOrDefault(ctx, user.ID),
		UserMetadata: metadata,
	}, nil
}

// Logout revokes accessToken until expiresAt and ends the backend session.
// The backend call is best effort.
func (s *AuthService) Logout(ctx context.Context, principal domain.Principal, accessToken string, expiresAt time.Time) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if s.revocations != nil && expiresAt.After(time.Now()) {
		if err := s.revocations.Revoke(ctx, accessToken, expiresAt); err != nil {
			span.RecordError(err)
			return fmt.Errorf("revoke access token: %w", err)
		}
	}

	if err := s.backend.SignOut(ctx, accessToken); err != nil {
		s.log().Warn("backend sign out failed", zap.String("user_id", principal.ID), zap.Error(err))
	}

	s.audit("user.logout", "user_id", principal.ID)
	return nil
}

func (s *AuthService) roleOrDefault(ctx context.Context, userID string) string {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil || !domain.ValidRole(user.Role) {
		return domain.RoleUser
	}
	return user.Role
}
