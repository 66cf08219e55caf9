package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/service"
)

// OptionHandler serves /options. Access follows the parent decision's owner.
type OptionHandler struct {
	Options *service.OptionService
}

func NewOptionHandler(options *service.OptionService) *OptionHandler {
	return &OptionHandler{Options: options}
}

func (h *OptionHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in service.CreateOptionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondInvalidPayload(c)
		return
	}

	option, err := h.Options.Create(c.Request.Context(), p, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, option)
}

// ListByDecision reads the path parameter as a decision id.
func (h *OptionHandler) ListByDecision(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	options, err := h.Options.List(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, options)
}

func (h *OptionHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var patch domain.OptionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondInvalidPayload(c)
		return
	}

	option, err := h.Options.Update(c.Request.Context(), p, c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, option)
}

func (h *OptionHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.Options.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
