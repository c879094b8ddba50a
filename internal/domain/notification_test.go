package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNotification_WireForm(t *testing.T) {
	at := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	n := Notification{
		ID:         "n1",
		Kind:       KindEmotion,
		PatientID:  "p1",
		Payload:    EmotionPayload{Expression: "sad", Confidence: 0.9, Risk: RiskHigh, Explanation: "Detected sad"},
		OccurredAt: at,
	}

	body, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(body, &flat); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for key, want := range map[string]any{"type": "emotion", "id": "n1", "patientId": "p1", "expression": "sad", "risk": "high"} {
		if flat[key] != want {
			t.Fatalf("field %s: got %v want %v", key, flat[key], want)
		}
	}

	var back Notification
	if err := json.Unmarshal(body, &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Kind != KindEmotion || !back.OccurredAt.Equal(at) || back.Payload.(EmotionPayload).Confidence != 0.9 {
		t.Fatalf("unexpected decoded notification: %+v", back)
	}
}

func TestNotification_UnknownType(t *testing.T) {
	var n Notification
	if err := json.Unmarshal([]byte(`{"type":"weather","id":"x"}`), &n); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestRawEventKind_NotificationKind(t *testing.T) {
	if RawFamilyAlert.NotificationKind() != KindUnknownFace {
		t.Fatalf("familyAlert must map to unknown_face")
	}
	if RawEventKind("ping").NotificationKind() != "" {
		t.Fatalf("unknown raw kinds map to empty")
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	if !errors.Is(&StoreUnavailable{Err: cause}, cause) {
		t.Fatalf("StoreUnavailable must unwrap")
	}
	terr := error(&TransportError{SessionID: "s1", Err: ErrDeliveryTimeout})
	if !errors.Is(terr, ErrDeliveryTimeout) {
		t.Fatalf("TransportError must unwrap")
	}
	var verr *ValidationError
	if !errors.As(error(&ValidationError{Field: "patientId", Reason: "is required"}), &verr) || verr.Error() != "validation: patientId is required" {
		t.Fatalf("unexpected validation error form")
	}
}
