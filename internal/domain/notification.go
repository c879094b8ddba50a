package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotificationKind es el conjunto cerrado de tipos de alerta canónicos.
type NotificationKind string

const (
	KindEmotion        NotificationKind = "emotion"
	KindUnknownFace    NotificationKind = "unknown_face"
	KindSOS            NotificationKind = "sos"
	KindReminderMissed NotificationKind = "reminder_missed"
)

// EventCaregiverNotification es el único evento de salida hacia cuidadores.
const EventCaregiverNotification = "caregiver_notification"

// RiskLevel clasifica una lectura de emoción.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Payload son los datos específicos de cada tipo de notificación.
type Payload interface {
	Kind() NotificationKind
}

type EmotionPayload struct {
	Expression  string    `json:"expression"`
	Confidence  float64   `json:"confidence"`
	Risk        RiskLevel `json:"risk"`
	Explanation string    `json:"explanation"`
}

func (EmotionPayload) Kind() NotificationKind { return KindEmotion }

type UnknownFacePayload struct {
	Info string `json:"info"`
}

func (UnknownFacePayload) Kind() NotificationKind { return KindUnknownFace }

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SOSPayload mantiene location en null cuando el paciente no pudo geolocalizarse.
type SOSPayload struct {
	Location   *Location  `json:"location"`
	ReportedAt *time.Time `json:"reportedAt,omitempty"`
}

func (SOSPayload) Kind() NotificationKind { return KindSOS }

type ReminderMissedPayload struct {
	ReminderID    string    `json:"reminderId"`
	Medication    string    `json:"medication"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

func (ReminderMissedPayload) Kind() NotificationKind { return KindReminderMissed }

// Notification es la alerta canónica. Se crea una sola vez en el normalizador
// y no se modifica ni se persiste después.
type Notification struct {
	ID         string
	Kind       NotificationKind
	PatientID  string
	Payload    Payload
	OccurredAt time.Time
}

// MarshalJSON produce la forma de salida {type, id, patientId, occurredAt, ...payload}.
func (n Notification) MarshalJSON() ([]byte, error) {
	fields := map[string]any{}
	if n.Payload != nil {
		raw, err := json.Marshal(n.Payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	fields["type"] = n.Kind
	fields["id"] = n.ID
	fields["patientId"] = n.PatientID
	fields["occurredAt"] = n.OccurredAt
	return json.Marshal(fields)
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	var head struct {
		Type       NotificationKind `json:"type"`
		ID         string           `json:"id"`
		PatientID  string           `json:"patientId"`
		OccurredAt time.Time        `json:"occurredAt"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	var payload Payload
	switch head.Type {
	case KindEmotion:
		var p EmotionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		payload = p
	case KindUnknownFace:
		var p UnknownFacePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		payload = p
	case KindSOS:
		var p SOSPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		payload = p
	case KindReminderMissed:
		var p ReminderMissedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		payload = p
	default:
		return fmt.Errorf("unknown notification type %q", head.Type)
	}

	*n = Notification{
		ID:         head.ID,
		Kind:       head.Type,
		PatientID:  head.PatientID,
		Payload:    payload,
		OccurredAt: head.OccurredAt,
	}
	return nil
}

// EventError es el evento de salida que reporta un error solo a quien lo causó.
const EventError = "error"

// ErrorPayload es el cuerpo de un evento error.
type ErrorPayload struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
