package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"care-relay/internal/domain"
	"care-relay/internal/service"
)

// AlertsHandler recibe eventos de dispositivos que no mantienen un socket.
type AlertsHandler struct {
	logger  *zap.Logger
	gateway *service.Gateway
}

func NewAlertsHandler(logger *zap.Logger, gateway *service.Gateway) *AlertsHandler {
	return &AlertsHandler{logger: logger, gateway: gateway}
}

// Post maneja POST /alerts con cuerpo {event, data}.
func (h *AlertsHandler) Post(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var raw domain.RawEvent
	if err := c.ShouldBindJSON(&raw); err != nil {
		h.logger.Warn("invalid alert request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	n, err := h.gateway.IngestFrom(c.Request.Context(), identity, raw)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		default:
			h.logger.Error("ingest alert", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not ingest alert"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": n.ID, "type": n.Kind})
}
