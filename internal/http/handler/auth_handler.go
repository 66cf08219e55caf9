package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/decisionlog/internal/http/middleware"
	"github.com/smallbiznis/decisionlog/internal/service"
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	resp, err := h.Auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	resp, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// An empty body is reported as a missing token below.
	_ = c.ShouldBindJSON(&req)

	resp, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	resp, err := h.Auth.Me(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var expiresAt time.Time
	if claims, ok := middleware.GetClaims(c); ok {
		expiresAt = claims.Expiry
	}

	if err := h.Auth.Logout(c.Request.Context(), p, middleware.GetAccessToken(c), expiresAt); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
