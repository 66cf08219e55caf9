package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/service"
)

// DecisionHandler serves /decisions. Every call is scoped to the caller.
type DecisionHandler struct {
	Decisions *service.DecisionService
}

func NewDecisionHandler(decisions *service.DecisionService) *DecisionHandler {
	return &DecisionHandler{Decisions: decisions}
}

func (h *DecisionHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in service.CreateDecisionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondInvalidPayload(c)
		return
	}

	decision, err := h.Decisions.Create(c.Request.Context(), p, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (h *DecisionHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	decisions, err := h.Decisions.List(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decisions)
}

func (h *DecisionHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	decision, err := h.Decisions.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (h *DecisionHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var patch domain.DecisionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondInvalidPayload(c)
		return
	}

	decision, err := h.Decisions.Update(c.Request.Context(), p, c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (h *DecisionHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.Decisions.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
