package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"care-relay/internal/domain"
	"care-relay/internal/service"
)

// SSEHandler atiende GET /notifications/stream: una sesión de solo lectura.
type SSEHandler struct {
	logger  *zap.Logger
	gateway *service.Gateway
}

func NewSSEHandler(logger *zap.Logger, gateway *service.Gateway) *SSEHandler {
	return &SSEHandler{logger: logger, gateway: gateway}
}

// Stream maneja GET /notifications/stream?patients=p1,p2.
func (h *SSEHandler) Stream(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	transport := newSSETransport()
	session := h.gateway.Connect(identity, transport)
	defer h.gateway.Disconnect(session)

	ctx := c.Request.Context()
	for _, patientID := range splitPatients(c.Query("patients")) {
		if err := h.gateway.JoinGroup(ctx, session, patientID); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, service.ErrJoinForbidden) {
				status = http.StatusForbidden
			}
			c.JSON(status, gin.H{"error": err.Error(), "patientId": patientID})
			return
		}
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("connected", gin.H{"sessionId": session.ID, "groups": session.Groups()})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case n := <-transport.out:
			c.SSEvent(domain.EventCaregiverNotification, n)
			return true
		case <-session.Done():
			return false
		case <-ctx.Done():
			return false
		}
	})
	h.logger.Debug("sse stream closed", zap.String("session_id", session.ID))
}

func splitPatients(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sseTransport entrega al goroutine del stream, que es el único que escribe.
type sseTransport struct {
	out       chan domain.Notification
	done      chan struct{}
	closeOnce sync.Once
}

func newSSETransport() *sseTransport {
	return &sseTransport{
		out:  make(chan domain.Notification),
		done: make(chan struct{}),
	}
}

func (t *sseTransport) Send(ctx context.Context, n domain.Notification) error {
	select {
	case t.out <- n:
		return nil
	case <-t.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *sseTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}
