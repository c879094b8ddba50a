package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"care-relay/internal/domain"
)

type message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client es una sesión websocket contra el relay, del lado del cuidador.
type Client struct {
	logger *zap.Logger
	conn   *websocket.Conn
	buffer *NotificationBuffer

	writeMu sync.Mutex
}

// Dial conecta a baseURL (http(s)://host:port) con el token dado.
func Dial(ctx context.Context, logger *zap.Logger, baseURL, token string, buffer *NotificationBuffer) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer == nil {
		buffer = NewNotificationBuffer(DefaultBufferSize)
	}
	wsURL, err := websocketURL(baseURL, token)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dial relay: unauthorized: %w", err)
		}
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	return &Client{logger: logger, conn: conn, buffer: buffer}, nil
}

// Buffer devuelve el buffer donde Listen acumula notificaciones.
func (c *Client) Buffer() *NotificationBuffer { return c.buffer }

// Join envía join_patient para el paciente.
func (c *Client) Join(patientID string) error {
	return c.Emit(domain.CommandJoinPatient, patientID)
}

// Emit envía un evento crudo {event, data}.
func (c *Client) Emit(event string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(message{Event: event, Data: body})
}

// Listen lee hasta que ctx se cancele o la conexión se cierre. Cada
// caregiver_notification entra al buffer y, si onNotify no es nil, se notifica.
// Los eventos error se pasan a onError.
func (c *Client) Listen(ctx context.Context, onNotify func(domain.Notification), onError func(domain.ErrorPayload)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.Close()
		case <-stop:
		}
	}()

	for {
		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		switch msg.Event {
		case domain.EventCaregiverNotification:
			var n domain.Notification
			if err := json.Unmarshal(msg.Data, &n); err != nil {
				c.logger.Warn("discarding malformed notification", zap.Error(err))
				continue
			}
			c.buffer.Add(n)
			if onNotify != nil {
				onNotify(n)
			}
		case domain.EventError:
			var p domain.ErrorPayload
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				c.logger.Warn("discarding malformed error event", zap.Error(err))
				continue
			}
			if onError != nil {
				onError(p)
			}
		default:
			c.logger.Debug("ignoring event", zap.String("event", msg.Event))
		}
	}
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func websocketURL(baseURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errors.New("relay url must be http(s) or ws(s)")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := u.Query()
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
