package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/http/middleware"
)

func respondError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

func respondInvalidPayload(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": "Invalid payload."})
}

// principal returns the caller resolved by ValidateJWT. Routes without the
// middleware never reach handlers that call it.
func principal(c *gin.Context) (domain.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "detail": "Authentication required"})
		return domain.Principal{}, false
	}
	return *p, true
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
