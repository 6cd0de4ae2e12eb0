package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"restrobook/pkg/logger"
	"restrobook/pkg/models"
	"restrobook/service"
)

// Device issues the device id cookie on first contact.
func (h *Handler) Device() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(deviceCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(deviceCookie, id, deviceCookieAge, "/", "", false, true)
		}
		c.Set(ctxDevice, id)
		c.Next()
	}
}

// RequireRole admits bearer tokens whose role is one of roles.
func (h *Handler) RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		claims, err := h.services.User().ParseToken(parts[1])
		if err != nil {
			h.handleError(c, service.ErrInvalidToken)
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Set(ctxClaims, claims)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "insufficient role"})
	}
}

// RequestLog writes one line per request; server errors are logged at warning level.
func (h *Handler) RequestLog() gin.HandlerFunc {
	log := h.log.With(logger.String("component", "http"))
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warning("request", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
