package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/http/middleware"
	"github.com/smallbiznis/decisionlog/internal/jwt"
	"github.com/smallbiznis/decisionlog/internal/service"
	"github.com/smallbiznis/decisionlog/internal/testutil/memstore"
)

type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Time) error { return nil }

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func mintToken(t *testing.T, subject string) string {
	t.Helper()
	gen, err := jwt.NewGenerator([]byte(memstore.TestSecret), memstore.TestBaseURL+"/auth/v1", time.Hour)
	require.NoError(t, err)
	token, _, err := gen.GenerateAccessToken(subject, subject+"@example.com", "session-1")
	require.NoError(t, err)
	return token
}

func newAuth(store *memstore.Store) *middleware.Auth {
	verifier := jwt.NewVerifier(memstore.TestSecret, memstore.TestBaseURL, nil)
	return middleware.NewAuth(verifier, store.Revocations(), zap.NewNop())
}

func protectedEngine(auth *middleware.Auth, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{auth.ValidateJWT}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		claims, _ := middleware.GetClaims(c)
		c.JSON(http.StatusOK, gin.H{
			"id":    principal.ID,
			"role":  principal.Role,
			"email": claims.Email,
			"token": middleware.GetAccessToken(c) != "",
		})
	})
	r.GET("/protected", handlers...)
	return r
}

func call(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestValidateJWTRejects(t *testing.T) {
	r := protectedEngine(newAuth(memstore.New()))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer   "},
		{"garbage", "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := call(r, tc.header)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.Equal(t, "unauthorized", decode(t, w)["error"])
		})
	}
}

func TestValidateJWTAttachesPrincipal(t *testing.T) {
	r := protectedEngine(newAuth(memstore.New()))

	w := call(r, "bearer "+mintToken(t, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "user-1", body["id"])
	require.Equal(t, "user-1@example.com", body["email"])
	require.Equal(t, true, body["token"])
}

func TestValidateJWTRevokedToken(t *testing.T) {
	store := memstore.New()
	r := protectedEngine(newAuth(store))
	token := mintToken(t, "user-1")

	require.NoError(t, store.Revocations().Revoke(context.Background(), token, time.Now().Add(time.Hour)))

	w := call(r, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Token has been revoked", decode(t, w)["detail"])
}

func TestValidateJWTFailsClosedOnRevocationError(t *testing.T) {
	verifier := jwt.NewVerifier(memstore.TestSecret, memstore.TestBaseURL, nil)
	r := protectedEngine(middleware.NewAuth(verifier, failingRevocations{}, zap.NewNop()))

	w := call(r, "Bearer "+mintToken(t, "user-1"))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	_, err := store.Users().Create(ctx, domain.User{ID: "admin-1", Email: "a@example.com", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = store.Users().Create(ctx, domain.User{ID: "user-1", Email: "u@example.com", Role: domain.RoleUser})
	require.NoError(t, err)

	guard := service.NewRoleGuard(store.Users(), zap.NewNop())
	r := protectedEngine(newAuth(store), middleware.RequireRole(guard, domain.RoleAdmin))

	w := call(r, "Bearer "+mintToken(t, "admin-1"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, domain.RoleAdmin, decode(t, w)["role"])

	w = call(r, "Bearer "+mintToken(t, "user-1"))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.JSONEq(t, `{"error":"forbidden","detail":"Admin access required"}`, w.Body.String())

	w = call(r, "Bearer "+mintToken(t, "ghost"))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"error":"not_found","detail":"User not found"}`, w.Body.String())
}

func TestAbortWithErrorHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	middleware.AbortWithError(c, errors.New("pq: connection reset"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"server_error","detail":"Internal server error."}`, w.Body.String())
	require.True(t, c.IsAborted())
	require.Len(t, c.Errors, 1)
	require.Equal(t, "server_error", c.GetString("errorKind"))
}
