package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/decisionlog/internal/service"
)

// AdminHandler serves /admin. Routes are mounted behind RequireRole(admin).
type AdminHandler struct {
	Admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{Admin: admin}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.Admin.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) UpdateRole(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	user, err := h.Admin.UpdateRole(c.Request.Context(), p, c.Param("id"), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.Admin.DeleteUser(c.Request.Context(), p, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.Admin.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
