package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/jwt"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

const (
	principalKey = "principal"
	claimsKey    = "accessClaims"
	tokenKey     = "accessToken"
	errorKindKey = "errorKind"
)

// Auth validates the Authorization header and attaches the caller's identity.
type Auth struct {
	Verifier    *jwt.Verifier
	Revocations repository.RevocationStore
	Logger      *zap.Logger
}

func NewAuth(verifier *jwt.Verifier, revocations repository.RevocationStore, logger *zap.Logger) *Auth {
	return &Auth{Verifier: verifier, Revocations: revocations, Logger: logger}
}

func (m *Auth) log() *zap.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return zap.L()
}

// ValidateJWT ensures the request has a valid, unrevoked bearer token.
func (m *Auth) ValidateJWT(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abortUnauthorized(c, "Authorization header required")
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		abortUnauthorized(c, "Bearer token required")
		return
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		abortUnauthorized(c, "Bearer token required")
		return
	}

	ctx := c.Request.Context()
	claims, err := m.Verifier.Verify(ctx, token)
	if err != nil {
		m.log().Debug("access token rejected", zap.Error(err))
		abortUnauthorized(c, "Invalid or expired token")
		return
	}

	if m.Revocations != nil {
		revoked, err := m.Revocations.IsRevoked(ctx, token)
		if err != nil {
			m.log().Warn("revocation lookup failed", zap.Error(err))
			abortUnauthorized(c, "Invalid or expired token")
			return
		}
		if revoked {
			abortUnauthorized(c, "Token has been revoked")
			return
		}
	}

	c.Set(principalKey, &domain.Principal{ID: claims.Subject})
	c.Set(claimsKey, claims)
	c.Set(tokenKey, token)
	c.Next()
}

func abortUnauthorized(c *gin.Context, detail string) {
	c.Set(errorKindKey, "unauthorized")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "detail": detail})
}

// GetPrincipal returns the identity resolved by ValidateJWT.
func GetPrincipal(c *gin.Context) (*domain.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := value.(*domain.Principal)
	return p, ok && p != nil
}

// GetClaims exposes the verified access token claims to handlers.
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*jwt.Claims)
	return claims, ok
}

// GetAccessToken returns the raw bearer token of the request.
func GetAccessToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
