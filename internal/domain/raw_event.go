package domain

import (
	"encoding/json"
	"time"
)

// RawEventKind es el nombre del evento tal como lo emite el cliente del paciente.
type RawEventKind string

const (
	RawEmotionAlert   RawEventKind = "emotionAlert"
	RawFamilyAlert    RawEventKind = "familyAlert"
	RawSOSAlert       RawEventKind = "sosAlert"
	RawReminderMissed RawEventKind = "reminderMissed"
)

// CommandJoinPatient es el comando de membresía enviado por una sesión.
const CommandJoinPatient = "join_patient"

// NotificationKind devuelve el tipo canónico correspondiente, o "" si no existe.
func (k RawEventKind) NotificationKind() NotificationKind {
	switch k {
	case RawEmotionAlert:
		return KindEmotion
	case RawFamilyAlert:
		return KindUnknownFace
	case RawSOSAlert:
		return KindSOS
	case RawReminderMissed:
		return KindReminderMissed
	default:
		return ""
	}
}

// RawEvent es un reporte heterogéneo sin validar.
type RawEvent struct {
	Kind RawEventKind    `json:"event"`
	Data json.RawMessage `json:"data"`
}

type EmotionAlert struct {
	PatientID  string   `json:"patientId"`
	Expression string   `json:"expression"`
	Confidence *float64 `json:"confidence"`
}

type FamilyAlert struct {
	PatientID string `json:"patientId"`
	Info      string `json:"info"`
}

type SOSAlert struct {
	PatientID string     `json:"patientId"`
	Location  *Location  `json:"location"`
	Time      *time.Time `json:"time,omitempty"`
}

type ReminderMissedAlert struct {
	Reminder *Reminder `json:"reminder"`
}

// NewRawEvent serializa v como datos de un evento crudo del tipo indicado.
func NewRawEvent(kind RawEventKind, v any) (RawEvent, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return RawEvent{}, err
	}
	return RawEvent{Kind: kind, Data: data}, nil
}
