package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"care-relay/internal/domain"
	"care-relay/internal/service"
)

func TestWS_SOSReachesEveryCaregiver(t *testing.T) {
	relay := newTestRelay(t, service.DeliveryBroadcast, service.NewOpaqueAuthenticator())

	caregivers := []*websocket.Conn{relay.dial(t, "c1"), relay.dial(t, "c2"), relay.dial(t, "c3")}
	patient := relay.dial(t, "p1-device")
	relay.waitSessions(t, 4)

	emit(t, patient, string(domain.RawSOSAlert), map[string]any{"patientId": "p1", "location": nil})

	var ids []string
	for i, conn := range caregivers {
		msg := readMessage(t, conn)
		if msg.Event != domain.EventCaregiverNotification {
			t.Fatalf("caregiver %d: unexpected event %s", i, msg.Event)
		}
		var n domain.Notification
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			t.Fatalf("caregiver %d: decode: %v", i, err)
		}
		if n.Kind != domain.KindSOS || n.PatientID != "p1" {
			t.Fatalf("caregiver %d: unexpected notification %+v", i, n)
		}
		if p := n.Payload.(domain.SOSPayload); p.Location != nil {
			t.Fatalf("caregiver %d: expected null location", i)
		}
		ids = append(ids, n.ID)
	}
	if ids[0] != ids[1] || ids[1] != ids[2] {
		t.Fatalf("caregivers received different notifications: %v", ids)
	}
}

func TestWS_ValidationErrorOnlyToSender(t *testing.T) {
	relay := newTestRelay(t, service.DeliveryBroadcast, service.NewOpaqueAuthenticator())

	sender := relay.dial(t, "device")
	other := relay.dial(t, "c1")
	relay.waitSessions(t, 2)

	emit(t, sender, string(domain.RawEmotionAlert), map[string]any{"expression": "sad", "confidence": 0.9})

	msg := readMessage(t, sender)
	if msg.Event != domain.EventError {
		t.Fatalf("expected error event, got %s", msg.Event)
	}
	var payload domain.ErrorPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Field != "patientId" {
		t.Fatalf("expected patientId field, got %+v", payload)
	}

	emit(t, sender, string(domain.RawFamilyAlert), map[string]any{"patientId": "p1", "info": "unknown face"})
	if got := readMessage(t, other); got.Event != domain.EventCaregiverNotification {
		t.Fatalf("expected the valid event to reach other sessions, got %s", got.Event)
	}
	if relay.hub.Count() != 2 {
		t.Fatalf("validation error must not close sessions")
	}
}

func TestWS_UnknownEventAndMalformedEnvelope(t *testing.T) {
	relay := newTestRelay(t, service.DeliveryBroadcast, service.NewOpaqueAuthenticator())
	conn := relay.dial(t, "device")
	relay.waitSessions(t, 1)

	emit(t, conn, "heartbeat", map[string]any{})
	if msg := readMessage(t, conn); msg.Event != domain.EventError {
		t.Fatalf("expected error for unknown event, got %s", msg.Event)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Event != domain.EventError {
		t.Fatalf("expected error for malformed envelope, got %s", msg.Event)
	}
}

func TestWS_JoinPatientInGroupMode(t *testing.T) {
	relay := newTestRelay(t, service.DeliveryGroup, service.NewOpaqueAuthenticator())

	member := relay.dial(t, "c1")
	outsider := relay.dial(t, "c2")
	device := relay.dial(t, "device")
	relay.waitSessions(t, 3)

	emit(t, member, domain.CommandJoinPatient, "p1")
	emit(t, member, domain.CommandJoinPatient, map[string]string{"patientId": "p1"})

	deadline := time.Now().Add(time.Second)
	for {
		sessions := relay.hub.Sessions()
		joined := false
		for _, s := range sessions {
			if len(s.Groups) == 1 && s.Groups[0] == "p1" {
				joined = true
			}
		}
		if joined {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("join_patient was not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	emit(t, device, string(domain.RawSOSAlert), map[string]any{"patientId": "p1"})
	if msg := readMessage(t, member); msg.Event != domain.EventCaregiverNotification {
		t.Fatalf("group member expected notification, got %s", msg.Event)
	}
	expectSilence(t, outsider, 100*time.Millisecond)
}

func TestWS_JWTRejectsInvalidToken(t *testing.T) {
	relay := newTestRelay(t, service.DeliveryBroadcast, service.NewJWTAuthenticator(service.NewJWTService("secret", time.Minute)))

	url := "ws" + strings.TrimPrefix(relay.server.URL, "http") + "/ws?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
	if relay.hub.Count() != 0 {
		t.Fatalf("no session must be registered")
	}
}

func TestWS_DisconnectRemovesSession(t *testing.T) {
	relay := newTestRelay(t, service.DeliveryBroadcast, service.NewOpaqueAuthenticator())
	conn := relay.dial(t, "c1")
	relay.waitSessions(t, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	relay.waitSessions(t, 0)
}
