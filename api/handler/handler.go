package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"restrobook/config"
	"restrobook/pkg/imagehost"
	"restrobook/pkg/logger"
	"restrobook/pkg/mailer"
	"restrobook/pkg/metrics"
	"restrobook/pkg/models"
	"restrobook/service"
)

const (
	deviceCookie       = "device_id"
	markerCookiePrefix = "table_order_"

	deviceCookieAge = 365 * 24 * 60 * 60
	markerCookieAge = 24 * 60 * 60

	ctxDevice = "device_id"
	ctxClaims = "claims"
)

// Pinger reports whether the backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	services service.IServiceManager
	log      logger.ILogger
	metrics  *metrics.Registry
	store    Pinger
	cfg      config.Config
}

func New(services service.IServiceManager, store Pinger, m *metrics.Registry, cfg config.Config, log logger.ILogger) *Handler {
	return &Handler{
		services: services,
		log:      log,
		metrics:  m,
		store:    store,
		cfg:      cfg,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleError maps service errors onto HTTP statuses with a user facing message.
func (h *Handler) handleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrMenuItemNotFound),
		errors.Is(err, service.ErrSuggestionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrStatusConflict),
		errors.Is(err, service.ErrTableOccupied),
		errors.Is(err, service.ErrNoTransition),
		errors.Is(err, service.ErrOrderNotActive),
		errors.Is(err, service.ErrMailboxFull),
		errors.Is(err, service.ErrUserExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNotHost),
		errors.Is(err, service.ErrNotGuest):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrUnknownItem),
		errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrUnknownTable),
		errors.Is(err, service.ErrInvalidOrder),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrNoOrders):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrCancelNotConfirmed),
		errors.Is(err, service.ErrNoRecipient):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrStoreTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mailer.ErrNotConfigured),
		errors.Is(err, imagehost.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", logger.String("path", c.FullPath()), logger.Error(err))
		msg = "something went wrong, please try again"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func deviceID(c *gin.Context) string {
	return c.GetString(ctxDevice)
}

func markerName(tableID string) string {
	return markerCookiePrefix + strings.ReplaceAll(tableID, " ", "_")
}

func marker(c *gin.Context, tableID string) string {
	v, err := c.Cookie(markerName(tableID))
	if err != nil {
		return ""
	}
	return v
}

func setMarker(c *gin.Context, tableID, orderID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(markerName(tableID), orderID, markerCookieAge, "/", "", false, true)
}

func clearMarker(c *gin.Context, tableID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(markerName(tableID), "", -1, "/", "", false, true)
}

// resolveSession resolves the calling device at tableID and drops a stale marker.
func (h *Handler) resolveSession(c *gin.Context, tableID string) models.Session {
	sess := h.services.Session().Resolve(c.Request.Context(), tableID, deviceID(c), marker(c, tableID))
	if sess.ClearMarker {
		clearMarker(c, tableID)
	}
	return sess
}
