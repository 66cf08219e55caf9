package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

// Auth implements repository.AuthBackend against GoTrue.
type Auth struct {
	client *Client
}

var _ repository.AuthBackend = (*Auth)(nil)

func NewAuth(client *Client) *Auth {
	return &Auth{client: client}
}

type userPayload struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (u userPayload) toDomain() domain.AuthUser {
	return domain.AuthUser{
		ID:           u.ID,
		Email:        u.Email,
		UserMetadata: u.UserMetadata,
		CreatedAt:    u.CreatedAt,
	}
}

// sessionPayload covers both signup shapes: a session with a nested user,
// or a bare user when email confirmation is pending.
type sessionPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         *userPayload `json:"user"`
	userPayload
}

func (p sessionPayload) toDomain() domain.Session {
	user := p.userPayload
	if p.User != nil {
		user = *p.User
	}
	return domain.Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
		User:         user.toDomain(),
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (domain.Session, error) {
	var out sessionPayload
	if _, err := a.client.send(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   credentials{Email: email, Password: password},
	}, &out); err != nil {
		if alreadyRegistered(err) {
			return domain.Session{}, fmt.Errorf("%w: %w", domain.ErrEmailTaken, err)
		}
		return domain.Session{}, err
	}
	return out.toDomain(), nil
}

// alreadyRegistered matches GoTrue's duplicate signup rejection, which is a
// 400 or 422 depending on the server version.
func alreadyRegistered(err error) bool {
	var remote *domain.UpstreamError
	if !errors.As(err, &remote) {
		return false
	}
	return strings.Contains(strings.ToLower(remote.Message), "already registered")
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	return a.token(ctx, "password", credentials{Email: email, Password: password})
}

func (a *Auth) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	return a.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (a *Auth) token(ctx context.Context, grantType string, body any) (domain.Session, error) {
	var out sessionPayload
	if _, err := a.client.send(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
	}, &out); err != nil {
		return domain.Session{}, err
	}
	return out.toDomain(), nil
}

// SignOut ends the session of the access token's owner.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	_, err := a.client.send(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		bearer: accessToken,
	}, nil)
	return err
}

func (a *Auth) GetUser(ctx context.Context, id string) (domain.AuthUser, error) {
	var out userPayload
	if _, err := a.client.send(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/admin/users/" + url.PathEscape(id),
	}, &out); err != nil {
		return domain.AuthUser{}, notFound("get auth user", err)
	}
	if out.ID == "" {
		return domain.AuthUser{}, fmt.Errorf("get auth user: %w", repository.ErrNotFound)
	}
	return out.toDomain(), nil
}

// DeleteUser removes the GoTrue identity; foreign keys on auth.users
// cascade to the public tables.
func (a *Auth) DeleteUser(ctx context.Context, id string) error {
	if _, err := a.client.send(ctx, request{
		method: http.MethodDelete,
		path:   "/auth/v1/admin/users/" + url.PathEscape(id),
	}, nil); err != nil {
		return notFound("delete auth user", err)
	}
	return nil
}

func notFound(op string, err error) error {
	var remote *domain.UpstreamError
	if errors.As(err, &remote) && remote.Status == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	return err
}
