package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

const (
	returnRepresentation = "return=representation"
	countExact           = "count=exact"
)

var (
	_ repository.UserRepository     = (*UserRepo)(nil)
	_ repository.DecisionRepository = (*DecisionRepo)(nil)
	_ repository.OptionRepository   = (*OptionRepo)(nil)
)

func eq(value string) []string {
	return []string{"eq." + value}
}

func tablePath(table string) string {
	return "/rest/v1/" + table
}

// selectOne fetches the single row matching filter.
func selectOne[T any](ctx context.Context, c *Client, table string, filter url.Values) (T, error) {
	var zero T
	filter.Set("select", "*")
	filter.Set("limit", "1")

	var rows []T
	if _, err := c.send(ctx, request{method: http.MethodGet, path: tablePath(table), query: filter}, &rows); err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, repository.ErrNotFound
	}
	return rows[0], nil
}

// mutateOne sends a write that must touch exactly one row and returns it.
func mutateOne[T any](ctx context.Context, c *Client, method, table string, filter url.Values, body any) (T, error) {
	var zero T
	var rows []T
	if _, err := c.send(ctx, request{
		method: method,
		path:   tablePath(table),
		query:  filter,
		body:   body,
		prefer: []string{returnRepresentation},
	}, &rows); err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, repository.ErrNotFound
	}
	return rows[0], nil
}

func count(ctx context.Context, c *Client, table string, filter url.Values) (int64, error) {
	if filter == nil {
		filter = url.Values{}
	}
	filter.Set("select", "id")
	filter.Set("limit", "1")

	header, err := c.send(ctx, request{
		method: http.MethodGet,
		path:   tablePath(table),
		query:  filter,
		prefer: []string{countExact},
	}, nil)
	if err != nil {
		return 0, err
	}
	return parseCount(header)
}

// UserRepo reads and writes the public users table.
type UserRepo struct {
	client *Client
}

func NewUserRepo(client *Client) *UserRepo {
	return &UserRepo{client: client}
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, err := selectOne[domain.User](ctx, r.client, "users", url.Values{"id": eq(id)})
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

type userInsert struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r *UserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	role := user.Role
	if role == "" {
		role = domain.RoleUser
	}
	created, err := mutateOne[domain.User](ctx, r.client, http.MethodPost, "users", nil, []userInsert{{ID: user.ID, Email: user.Email, Role: role}})
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0)
	if _, err := r.client.send(ctx, request{
		method: http.MethodGet,
		path:   tablePath("users"),
		query:  url.Values{"select": {"*"}, "order": {"created_at.asc"}},
	}, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepo) UpdateRole(ctx context.Context, id, role string) (domain.User, error) {
	user, err := mutateOne[domain.User](ctx, r.client, http.MethodPatch, "users", url.Values{"id": eq(id)}, map[string]string{"role": role})
	if err != nil {
		return domain.User{}, fmt.Errorf("update user role: %w", err)
	}
	return user, nil
}

func (r *UserRepo) Count(ctx context.Context, role string) (int64, error) {
	filter := url.Values{}
	if role != "" {
		filter["role"] = eq(role)
	}
	n, err := count(ctx, r.client, "users", filter)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// DecisionRepo reads and writes the decisions table.
type DecisionRepo struct {
	client *Client
}

func NewDecisionRepo(client *Client) *DecisionRepo {
	return &DecisionRepo{client: client}
}

type decisionInsert struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	IsActive    bool    `json:"is_active"`
}

func (r *DecisionRepo) Create(ctx context.Context, d domain.Decision) (domain.Decision, error) {
	created, err := mutateOne[domain.Decision](ctx, r.client, http.MethodPost, "decisions", nil, []decisionInsert{{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Title:       d.Title,
		Description: d.Description,
		IsActive:    d.IsActive,
	}})
	if err != nil {
		return domain.Decision{}, fmt.Errorf("create decision: %w", err)
	}
	return created, nil
}

func (r *DecisionRepo) GetByID(ctx context.Context, id string) (domain.Decision, error) {
	decision, err := selectOne[domain.Decision](ctx, r.client, "decisions", url.Values{"id": eq(id)})
	if err != nil {
		return domain.Decision{}, fmt.Errorf("get decision: %w", err)
	}
	return decision, nil
}

func (r *DecisionRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Decision, error) {
	decisions := make([]domain.Decision, 0)
	if _, err := r.client.send(ctx, request{
		method: http.MethodGet,
		path:   tablePath("decisions"),
		query:  url.Values{"select": {"*"}, "owner_id": eq(ownerID), "order": {"created_at.desc"}},
	}, &decisions); err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	return decisions, nil
}

func (r *DecisionRepo) Update(ctx context.Context, id, ownerID string, patch domain.DecisionPatch) (domain.Decision, error) {
	body := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.Description.Set {
		body["description"] = patch.Description.Value
	}
	if patch.IsActive != nil {
		body["is_active"] = *patch.IsActive
	}

	decision, err := mutateOne[domain.Decision](ctx, r.client, http.MethodPatch, "decisions",
		url.Values{"id": eq(id), "owner_id": eq(ownerID)}, body)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("update decision: %w", err)
	}
	return decision, nil
}

func (r *DecisionRepo) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := mutateOne[domain.Decision](ctx, r.client, http.MethodDelete, "decisions",
		url.Values{"id": eq(id), "owner_id": eq(ownerID)}, nil); err != nil {
		return fmt.Errorf("delete decision: %w", err)
	}
	return nil
}

func (r *DecisionRepo) Count(ctx context.Context) (int64, error) {
	n, err := count(ctx, r.client, "decisions", nil)
	if err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n, nil
}

// OptionRepo reads and writes the decision_options table.
type OptionRepo struct {
	client *Client
}

func NewOptionRepo(client *Client) *OptionRepo {
	return &OptionRepo{client: client}
}

type optionInsert struct {
	ID         string `json:"id"`
	DecisionID string `json:"decision_id"`
	OptionText string `json:"option_text"`
	Rating     *int   `json:"rating"`
}

func (r *OptionRepo) Create(ctx context.Context, o domain.Option) (domain.Option, error) {
	created, err := mutateOne[domain.Option](ctx, r.client, http.MethodPost, "decision_options", nil, []optionInsert{{
		ID:         o.ID,
		DecisionID: o.DecisionID,
		OptionText: o.OptionText,
		Rating:     o.Rating,
	}})
	if err != nil {
		return domain.Option{}, fmt.Errorf("create option: %w", err)
	}
	return created, nil
}

func (r *OptionRepo) GetByID(ctx context.Context, id string) (domain.Option, error) {
	option, err := selectOne[domain.Option](ctx, r.client, "decision_options", url.Values{"id": eq(id)})
	if err != nil {
		return domain.Option{}, fmt.Errorf("get option: %w", err)
	}
	return option, nil
}

func (r *OptionRepo) ListByDecision(ctx context.Context, decisionID string) ([]domain.Option, error) {
	options := make([]domain.Option, 0)
	if _, err := r.client.send(ctx, request{
		method: http.MethodGet,
		path:   tablePath("decision_options"),
		query:  url.Values{"select": {"*"}, "decision_id": eq(decisionID), "order": {"created_at.asc"}},
	}, &options); err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	return options, nil
}

func (r *OptionRepo) Update(ctx context.Context, id string, patch domain.OptionPatch) (domain.Option, error) {
	body := map[string]any{"updated_at": time.Now().UTC()}
	if patch.OptionText != nil {
		body["option_text"] = *patch.OptionText
	}
	if patch.Rating.Set {
		body["rating"] = patch.Rating.Value
	}

	option, err := mutateOne[domain.Option](ctx, r.client, http.MethodPatch, "decision_options", url.Values{"id": eq(id)}, body)
	if err != nil {
		return domain.Option{}, fmt.Errorf("update option: %w", err)
	}
	return option, nil
}

func (r *OptionRepo) Delete(ctx context.Context, id string) error {
	if _, err := mutateOne[domain.Option](ctx, r.client, http.MethodDelete, "decision_options", url.Values{"id": eq(id)}, nil); err != nil {
		return fmt.Errorf("delete option: %w", err)
	}
	return nil
}

func (r *OptionRepo) Count(ctx context.Context) (int64, error) {
	n, err := count(ctx, r.client, "decision_options", nil)
	if err != nil {
		return 0, fmt.Errorf("count options: %w", err)
	}
	return n, nil
}
