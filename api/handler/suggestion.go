package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restrobook/pkg/models"
)

type suggestRequest struct {
	ItemID string `json:"itemId" binding:"required"`
}

// actingSession resolves the caller against the table of the addressed order.
func (h *Handler) actingSession(c *gin.Context) (models.Session, string, bool) {
	id := c.Param("id")
	order, err := h.services.Lifecycle().Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return models.Session{}, "", false
	}
	return h.resolveSession(c, order.TableID), id, true
}

func (h *Handler) Suggest(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	sess, id, ok := h.actingSession(c)
	if !ok {
		return
	}
	sg, err := h.services.Mailbox().Suggest(c.Request.Context(), sess, id, req.ItemID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sg)
}

func (h *Handler) AcceptSuggestion(c *gin.Context) {
	var key models.SuggestionKey
	if err := c.ShouldBindJSON(&key); err != nil {
		h.badRequest(c, err)
		return
	}
	sess, id, ok := h.actingSession(c)
	if !ok {
		return
	}
	sg, err := h.services.Mailbox().Accept(c.Request.Context(), sess, id, key)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sg)
}

func (h *Handler) DismissSuggestion(c *gin.Context) {
	var key models.SuggestionKey
	if err := c.ShouldBindJSON(&key); err != nil {
		h.badRequest(c, err)
		return
	}
	sess, id, ok := h.actingSession(c)
	if !ok {
		return
	}
	if err := h.services.Mailbox().Dismiss(c.Request.Context(), sess, id, key); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
