package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/decisionlog/internal/service"
)

// RequireRole must run after ValidateJWT. The role is re-read from the users
// table on every request.
func RequireRole(guard *service.RoleGuard, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}
		user, err := guard.RequireRole(c.Request.Context(), principal.ID, role)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		principal.Role = user.Role
		c.Next()
	}
}

// AbortWithError renders err as {"error": kind, "detail": detail}. Errors
// that are not a *service.Error become an opaque 500.
func AbortWithError(c *gin.Context, err error) {
	if svcErr, ok := service.AsError(err); ok {
		c.Set(errorKindKey, svcErr.Kind)
		if svcErr.Err != nil {
			_ = c.Error(svcErr.Err)
		}
		c.AbortWithStatusJSON(svcErr.Status, gin.H{"error": svcErr.Kind, "detail": svcErr.Detail})
		return
	}
	c.Set(errorKindKey, "server_error")
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error", "detail": "Internal server error."})
}
