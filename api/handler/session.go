package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetSession(c *gin.Context) {
	table := c.Param("table")
	c.JSON(http.StatusOK, h.resolveSession(c, table))
}

// TableStream pushes the device's session for a table whenever one of its orders changes.
// A stale marker cookie is dropped before the first event; once the stream is open
// headers are gone, so clients discard their marker on an event with clearMarker set.
func (h *Handler) TableStream(c *gin.Context) {
	table := c.Param("table")
	m := marker(c, table)
	if sess := h.resolveSession(c, table); sess.ClearMarker {
		m = ""
	}
	ch, err := h.services.Session().Watch(c.Request.Context(), table, deviceID(c), m)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.metrics.Streams.Inc()
	defer h.metrics.Streams.Dec()

	c.Stream(func(w io.Writer) bool {
		sess, ok := <-ch
		if !ok {
			return false
		}
		c.SSEvent("session", sess)
		return true
	})
}
