package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"restrobook/pkg/models"
	"restrobook/service"
)

func (h *Handler) PlaceOrder(c *gin.Context) {
	var req service.PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.TableID = c.Param("table")
	req.DeviceID = deviceID(c)

	order, err := h.services.Placement().Place(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	setMarker(c, order.TableID, order.ID)
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.services.Lifecycle().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// OrderStream is the tracker: one event per change of the order until it is closed by the client.
func (h *Handler) OrderStream(c *gin.Context) {
	ch, err := h.services.Lifecycle().Watch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.metrics.Streams.Inc()
	defer h.metrics.Streams.Dec()

	c.Stream(func(w io.Writer) bool {
		order, ok := <-ch
		if !ok {
			return false
		}
		c.SSEvent("order", order)
		return true
	})
}

type advanceRequest struct {
	From models.OrderStatus `json:"from" binding:"required"`
}

func (h *Handler) AdvanceOrder(c *gin.Context) {
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	next, err := h.services.Lifecycle().Advance(c.Request.Context(), c.Param("id"), req.From)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": next})
}

func (h *Handler) ServeOrder(c *gin.Context) {
	if err := h.services.Lifecycle().MarkServed(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.StatusServed})
}

type cancelRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) CancelOrder(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, err)
		return
	}
	if err := h.services.Lifecycle().Cancel(c.Request.Context(), c.Param("id"), req.Confirm); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.StatusCancelled})
}

func (h *Handler) KitchenOrders(c *gin.Context) {
	board, err := h.services.Lifecycle().KitchenBoard(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *Handler) KitchenStream(c *gin.Context) {
	ch, err := h.services.Lifecycle().WatchKitchen(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.metrics.Streams.Inc()
	defer h.metrics.Streams.Dec()

	c.Stream(func(w io.Writer) bool {
		board, ok := <-ch
		if !ok {
			return false
		}
		c.SSEvent("board", board)
		return true
	})
}

func (h *Handler) StaffOrders(c *gin.Context) {
	board, err := h.services.Lifecycle().StaffBoard(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}
