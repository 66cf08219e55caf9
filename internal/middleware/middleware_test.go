package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/decisionlog/internal/config"
	"github.com/smallbiznis/decisionlog/internal/middleware"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRateLimiterDisabled(t *testing.T) {
	require.Nil(t, middleware.NewRateLimiter(0))

	var limiter *middleware.RateLimiter
	r := newEngine(limiter.Handler())
	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterThrottlesPerClient(t *testing.T) {
	// 60 rpm gives a burst of 6.
	r := newEngine(middleware.NewRateLimiter(60).Handler())

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 6; i++ {
		require.Equal(t, http.StatusOK, do("10.0.0.1:1234").Code)
	}
	w := do("10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	require.JSONEq(t, `{"error":"rate_limited","detail":"Too many requests. Please slow down."}`, w.Body.String())

	require.Equal(t, http.StatusOK, do("10.0.0.2:1234").Code)
}

func TestCORS(t *testing.T) {
	cfg := config.Config{
		CORSAllowedOrigins: []string{"https://app.example"},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSAllowedHeaders: []string{"Authorization"},
	}
	r := newEngine(middleware.CORS(cfg))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://app.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
		req.Header.Set("Origin", "https://app.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestCORSWildcard(t *testing.T) {
	r := newEngine(middleware.CORS(config.Config{CORSAllowedOrigins: []string{"*"}}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://any.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
