package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"care-relay/internal/service"
)

// StatusHandler expone el estado del registro de sesiones.
type StatusHandler struct {
	hub *service.Hub
}

func NewStatusHandler(hub *service.Hub) *StatusHandler {
	return &StatusHandler{hub: hub}
}

// Health maneja GET /healthz.
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.hub.Count(),
		"mode":     h.hub.Mode(),
	})
}

// Sessions maneja GET /sessions (solo admin).
func (h *StatusHandler) Sessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.hub.Sessions()})
}
