package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"care-relay/internal/domain"
	"care-relay/internal/metrics"
	"care-relay/internal/service"
)

type mockUserRepo struct {
	patients []domain.User
	err      error
}

func (m *mockUserRepo) ListPatients(_ context.Context, limit int) ([]domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.patients) > limit {
		return m.patients[:limit], nil
	}
	return m.patients, nil
}

type testRelay struct {
	server  *httptest.Server
	hub     *service.Hub
	gateway *service.Gateway
	users   *mockUserRepo
}

func newTestRelay(t *testing.T, mode service.DeliveryMode, auth service.Authenticator) *testRelay {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := service.NewHub(logger, service.HubOptions{Mode: mode}, m)
	gateway := service.NewGateway(logger, hub, service.NewNormalizer(), nil, m)
	users := &mockUserRepo{}

	router := NewRouter(
		logger,
		"http://localhost:5173",
		auth,
		NewWSHandler(logger, gateway, "", time.Second),
		NewSSEHandler(logger, gateway),
		NewAlertsHandler(logger, gateway),
		NewStatusHandler(hub),
		NewPatientsHandler(logger, users),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return &testRelay{server: server, hub: hub, gateway: gateway, users: users}
}

func (r *testRelay) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", token, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (r *testRelay) waitSessions(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if r.hub.Count() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d sessions, got %d", n, r.hub.Count())
}

func emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	body, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteJSON(wsMessage{Event: event, Data: body}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

// expectSilence falla si llega un mensaje antes de wait. Deja la conexión inutilizable.
func expectSilence(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("unexpected message %s: %s", msg.Event, msg.Data)
	}
}
