package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
	"github.com/smallbiznis/decisionlog/internal/supabase"
)

const serviceKey = "service-role-key"

type recorded struct {
	method string
	path   string
	query  map[string][]string
	header http.Header
	body   string
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) at(i int) recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

func newServer(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) (*supabase.Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.calls = append(rec.calls, recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query(),
			header: r.Header.Clone(),
			body:   string(body),
		})
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		handle(w, r)
	}))
	t.Cleanup(srv.Close)
	return supabase.NewClient(srv.URL+"/", serviceKey, srv.Client()), rec
}

func TestSignUpReturnsSession(t *testing.T) {
	client, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"access_token":"at","refresh_token":"rt","token_type":"bearer","expires_in":3600,
			"user":{"id":"u-1","email":"a@example.com","user_metadata":{"plan":"free"},"created_at":"2024-05-01T10:00:00.123456Z"}}`)
	})

	session, err := supabase.NewAuth(client).SignUp(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "at", session.AccessToken)
	require.Equal(t, "rt", session.RefreshToken)
	require.Equal(t, 3600, session.ExpiresIn)
	require.Equal(t, "u-1", session.User.ID)
	require.Equal(t, "free", session.User.UserMetadata["plan"])

	call := calls.at(0)
	require.Equal(t, http.MethodPost, call.method)
	require.Equal(t, "/auth/v1/signup", call.path)
	require.Equal(t, serviceKey, call.header.Get("apikey"))
	require.Equal(t, "Bearer "+serviceKey, call.header.Get("Authorization"))
	require.JSONEq(t, `{"email":"a@example.com","password":"pw"}`, call.body)
}

func TestSignUpPendingConfirmation(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"u-2","email":"b@example.com","created_at":"2024-05-01T10:00:00Z"}`)
	})

	session, err := supabase.NewAuth(client).SignUp(context.Background(), "b@example.com", "pw")
	require.NoError(t, err)
	require.Empty(t, session.AccessToken)
	require.Equal(t, "u-2", session.User.ID)
	require.Equal(t, "b@example.com", session.User.Email)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"code":422,"error_code":"user_already_exists","msg":"User already registered"}`)
	})

	_, err := supabase.NewAuth(client).SignUp(context.Background(), "a@example.com", "pw")
	require.ErrorIs(t, err, domain.ErrEmailTaken)

	var remote *domain.UpstreamError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, "User already registered", remote.Message)
}

func TestSignInPassesGrantAndUpstreamError(t *testing.T) {
	client, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
	})

	_, err := supabase.NewAuth(client).SignIn(context.Background(), "a@example.com", "wrong")
	var remote *domain.UpstreamError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, http.StatusBadRequest, remote.Status)
	require.Equal(t, "Invalid login credentials", remote.Message)

	call := calls.at(0)
	require.Equal(t, "/auth/v1/token", call.path)
	require.Equal(t, []string{"password"}, call.query["grant_type"])
}

func TestRefreshSendsRefreshToken(t *testing.T) {
	client, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"access_token":"at2","refresh_token":"rt2","user":{"id":"u-1"}}`)
	})

	session, err := supabase.NewAuth(client).Refresh(context.Background(), "rt1")
	require.NoError(t, err)
	require.Equal(t, "at2", session.AccessToken)

	call := calls.at(0)
	require.Equal(t, []string{"refresh_token"}, call.query["grant_type"])
	require.JSONEq(t, `{"refresh_token":"rt1"}`, call.body)
}

func TestSignOutUsesCallerToken(t *testing.T) {
	client, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, supabase.NewAuth(client).SignOut(context.Background(), "user-access-token"))

	call := calls.at(0)
	require.Equal(t, "/auth/v1/logout", call.path)
	require.Equal(t, "Bearer user-access-token", call.header.Get("Authorization"))
	require.Equal(t, serviceKey, call.header.Get("apikey"))
}

func TestAdminUserNotFound(t *testing.T) {
	client, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":404,"msg":"User not found"}`)
	})
	auth := supabase.NewAuth(client)

	_, err := auth.GetUser(context.Background(), "u-9")
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = auth.DeleteUser(context.Background(), "u-9")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.Equal(t, "/auth/v1/admin/users/u-9", calls.at(0).path)
	require.Equal(t, http.MethodDelete, calls.at(1).method)
}

func TestUserRepoQueries(t *testing.T) {
	client, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Query().Get("id") == "eq.known":
			_, _ = io.WriteString(w, `[{"id":"known","email":"k@example.com","role":"admin","created_at":"2024-05-01T10:00:00+00:00"}]`)
		case r.Method == http.MethodGet && r.Header.Get("Prefer") == "count=exact":
			w.Header().Set("Content-Range", "0-0/7")
			_, _ = io.WriteString(w, `[{"id":"x"}]`)
		case r.Method == http.MethodPatch:
			_, _ = io.WriteString(w, `[]`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	})
	users := supabase.NewUserRepo(client)
	ctx := context.Background()

	user, err := users.GetByID(ctx, "known")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, user.Role)

	_, err = users.GetByID(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)

	n, err := users.Count(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.EqualValues(t, 7, n)
	countCall := calls.at(2)
	require.Equal(t, "/rest/v1/users", countCall.path)
	require.Equal(t, []string{"eq.admin"}, countCall.query["role"])

	_, err = users.UpdateRole(ctx, "missing", domain.RoleAdmin)
	require.ErrorIs(t, err, repository.ErrNotFound)
	patchCall := calls.at(3)
	require.Equal(t, "return=representation", patchCall.header.Get("Prefer"))
	require.JSONEq(t, `{"role":"admin"}`, patchCall.body)
}

func TestDecisionRepoScopesMutationsToOwner(t *testing.T) {
	client, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"d-1","owner_id":"o-1","title":"renamed","description":null,"is_active":true,
			"created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-02T10:00:00Z"}]`)
	})
	decisions := supabase.NewDecisionRepo(client)

	title := "renamed"
	updated, err := decisions.Update(context.Background(), "d-1", "o-1", domain.DecisionPatch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Title)
	require.Nil(t, updated.Description)

	call := calls.at(0)
	require.Equal(t, http.MethodPatch, call.method)
	require.Equal(t, "/rest/v1/decisions", call.path)
	require.Equal(t, []string{"eq.d-1"}, call.query["id"])
	require.Equal(t, []string{"eq.o-1"}, call.query["owner_id"])

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(call.body), &body))
	require.Equal(t, "renamed", body["title"])
	require.Contains(t, body, "updated_at")
	require.NotContains(t, body, "description")
	require.NotContains(t, body, "is_active")
}

func TestDecisionRepoListOrderAndInsert(t *testing.T) {
	client, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `[{"id":"d-2","owner_id":"o-1","title":"new","is_active":true,
				"created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-01T10:00:00Z"}]`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})
	decisions := supabase.NewDecisionRepo(client)
	ctx := context.Background()

	list, err := decisions.ListByOwner(ctx, "o-1")
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
	require.Equal(t, []string{"created_at.desc"}, calls.at(0).query["order"])
	require.Equal(t, []string{"eq.o-1"}, calls.at(0).query["owner_id"])

	created, err := decisions.Create(ctx, domain.Decision{ID: "d-2", OwnerID: "o-1", Title: "new", IsActive: true})
	require.NoError(t, err)
	require.Equal(t, "d-2", created.ID)
	require.JSONEq(t, `[{"id":"d-2","owner_id":"o-1","title":"new","description":null,"is_active":true}]`, calls.at(1).body)
}

func TestOptionRepoDeleteMissing(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	err := supabase.NewOptionRepo(client).Delete(context.Background(), "o-404")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCheckViolationBecomesUpstreamError(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":"23514","message":"new row for relation \"decision_options\" violates check constraint"}`)
	})

	rating := 9
	_, err := supabase.NewOptionRepo(client).Create(context.Background(), domain.Option{ID: "o", DecisionID: "d", OptionText: "x", Rating: &rating})
	var remote *domain.UpstreamError
	require.True(t, errors.As(err, &remote))
	require.Contains(t, remote.Message, "violates check constraint")
}

func TestOptionRepoUpdateClearsRating(t *testing.T) {
	client, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"op-1","decision_id":"d-1","option_text":"tacos","rating":null,
			"created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-02T10:00:00Z"}]`)
	})
	options := supabase.NewOptionRepo(client)

	updated, err := options.Update(context.Background(), "op-1", domain.OptionPatch{Rating: domain.Null[int]()})
	require.NoError(t, err)
	require.Nil(t, updated.Rating)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(calls.at(0).body), &body))
	require.Contains(t, body, "rating")
	require.Nil(t, body["rating"])
	require.NotContains(t, body, "option_text")
}
