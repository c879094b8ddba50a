package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"care-relay/internal/domain"
	"care-relay/internal/service"
)

const (
	wsMaxMessageSize = 64 << 10
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
)

// wsMessage es el sobre {event, data} que viaja por el websocket.
type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSHandler atiende GET /ws: una sesión por conexión.
type WSHandler struct {
	logger       *zap.Logger
	gateway      *service.Gateway
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

func NewWSHandler(logger *zap.Logger, gateway *service.Gateway, allowedOrigin string, writeTimeout time.Duration) *WSHandler {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &WSHandler{
		logger:  logger,
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		writeTimeout: writeTimeout,
	}
}

// Handle maneja GET /ws.
func (h *WSHandler) Handle(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	transport := &wsTransport{conn: conn, writeTimeout: h.writeTimeout}
	session := h.gateway.Connect(identity, transport)
	defer h.gateway.Disconnect(session)

	go h.keepAlive(transport, session)
	h.readLoop(c.Request.Context(), transport, session)
}

func (h *WSHandler) readLoop(ctx context.Context, t *wsTransport, s *service.Session) {
	t.conn.SetReadLimit(wsMaxMessageSize)
	_ = t.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, payload, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", zap.String("session_id", s.ID), zap.Error(err))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.replyError(t, s, &domain.ValidationError{Field: "event", Reason: "malformed envelope"})
			continue
		}

		if msg.Event == domain.CommandJoinPatient {
			if err := h.gateway.JoinGroup(ctx, s, joinTarget(msg.Data)); err != nil {
				h.replyError(t, s, err)
			}
			continue
		}

		raw := domain.RawEvent{Kind: domain.RawEventKind(msg.Event), Data: msg.Data}
		if _, err := h.gateway.Ingest(ctx, s, raw); err != nil {
			if errors.Is(err, domain.ErrSessionClosed) {
				return
			}
			h.replyError(t, s, err)
		}
	}
}

// keepAlive envía pings hasta que la sesión termine.
func (h *WSHandler) keepAlive(t *wsTransport, s *service.Session) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.Done():
			return
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				h.logger.Debug("websocket ping failed", zap.String("session_id", s.ID), zap.Error(err))
				return
			}
		}
	}
}

func (h *WSHandler) replyError(t *wsTransport, s *service.Session, err error) {
	payload := domain.ErrorPayload{Message: err.Error()}
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		payload.Field = verr.Field
	case errors.Is(err, service.ErrJoinForbidden):
		payload.Message = "join forbidden"
	case errors.Is(err, service.ErrRateLimited):
		payload.Message = "too many emotion alerts"
	}
	if werr := t.write(context.Background(), domain.EventError, payload); werr != nil {
		h.logger.Debug("websocket error reply failed", zap.String("session_id", s.ID), zap.Error(werr))
	}
}

// joinTarget acepta join_patient con un string o con {patientId}.
func joinTarget(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}
	var obj struct {
		PatientID string `json:"patientId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.PatientID
	}
	return ""
}

func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed == "" || allowed == "*" {
			return true
		}
		return strings.EqualFold(origin, allowed)
	}
}

// wsTransport serializa las escrituras: gorilla admite un solo escritor a la vez.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (t *wsTransport) Send(ctx context.Context, n domain.Notification) error {
	return t.write(ctx, domain.EventCaregiverNotification, n)
}

func (t *wsTransport) write(ctx context.Context, event string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(t.writeTimeout)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteJSON(wsMessage{Event: event, Data: body})
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return t.conn.Close()
}
