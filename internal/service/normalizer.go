package service

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"care-relay/internal/domain"
)

// Normalizer convierte eventos crudos en notificaciones canónicas.
// No tiene estado mutable: es seguro usarlo desde varias goroutines.
type Normalizer struct {
	now   func() time.Time
	newID func() string
}

func NewNormalizer() *Normalizer {
	return NewNormalizerWithClock(func() time.Time { return time.Now().UTC() })
}

// NewNormalizerWithClock permite fijar el reloj que estampa occurredAt.
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now, newID: uuid.NewString}
}

// Normalize produce exactamente una Notification por evento bien formado.
// Cualquier campo requerido ausente devuelve *domain.ValidationError.
func (n *Normalizer) Normalize(raw domain.RawEvent) (domain.Notification, error) {
	switch raw.Kind {
	case domain.RawEmotionAlert:
		var in domain.EmotionAlert
		if err := decodeRaw(raw, &in); err != nil {
			return domain.Notification{}, err
		}
		return n.emotion(in)
	case domain.RawFamilyAlert:
		var in domain.FamilyAlert
		if err := decodeRaw(raw, &in); err != nil {
			return domain.Notification{}, err
		}
		return n.unknownFace(in)
	case domain.RawSOSAlert:
		var in domain.SOSAlert
		if err := decodeRaw(raw, &in); err != nil {
			return domain.Notification{}, err
		}
		return n.sos(in)
	case domain.RawReminderMissed:
		var in domain.ReminderMissedAlert
		if err := decodeRaw(raw, &in); err != nil {
			return domain.Notification{}, err
		}
		return n.reminderMissed(in)
	default:
		return domain.Notification{}, &domain.ValidationError{Field: "event", Reason: "unknown kind " + string(raw.Kind)}
	}
}

// NormalizeReminder sintetiza y normaliza un reminderMissed para r.
func (n *Normalizer) NormalizeReminder(r domain.Reminder) (domain.Notification, error) {
	raw, err := domain.NewRawEvent(domain.RawReminderMissed, domain.ReminderMissedAlert{Reminder: &r})
	if err != nil {
		return domain.Notification{}, err
	}
	return n.Normalize(raw)
}

func (n *Normalizer) emotion(in domain.EmotionAlert) (domain.Notification, error) {
	patientID := strings.TrimSpace(in.PatientID)
	if patientID == "" {
		return domain.Notification{}, missing("patientId")
	}
	expression := strings.TrimSpace(in.Expression)
	if expression == "" {
		return domain.Notification{}, missing("expression")
	}
	if in.Confidence == nil {
		return domain.Notification{}, missing("confidence")
	}
	if *in.Confidence < 0 || *in.Confidence > 1 {
		return domain.Notification{}, &domain.ValidationError{Field: "confidence", Reason: "out of range [0,1]"}
	}
	risk, explanation := ScoreEmotion(expression)
	return n.build(domain.KindEmotion, patientID, domain.EmotionPayload{
		Expression:  expression,
		Confidence:  *in.Confidence,
		Risk:        risk,
		Explanation: explanation,
	}), nil
}

func (n *Normalizer) unknownFace(in domain.FamilyAlert) (domain.Notification, error) {
	patientID := strings.TrimSpace(in.PatientID)
	if patientID == "" {
		return domain.Notification{}, missing("patientId")
	}
	if strings.TrimSpace(in.Info) == "" {
		return domain.Notification{}, missing("info")
	}
	return n.build(domain.KindUnknownFace, patientID, domain.UnknownFacePayload{Info: in.Info}), nil
}

func (n *Normalizer) sos(in domain.SOSAlert) (domain.Notification, error) {
	patientID := strings.TrimSpace(in.PatientID)
	if patientID == "" {
		return domain.Notification{}, missing("patientId")
	}
	payload := domain.SOSPayload{ReportedAt: in.Time}
	if in.Location != nil {
		loc := *in.Location
		payload.Location = &loc
	}
	return n.build(domain.KindSOS, patientID, payload), nil
}

func (n *Normalizer) reminderMissed(in domain.ReminderMissedAlert) (domain.Notification, error) {
	if in.Reminder == nil {
		return domain.Notification{}, missing("reminder")
	}
	r := *in.Reminder
	if strings.TrimSpace(r.ID) == "" {
		return domain.Notification{}, missing("reminder.id")
	}
	patientID := strings.TrimSpace(r.PatientID)
	if patientID == "" {
		return domain.Notification{}, missing("patientId")
	}
	return n.build(domain.KindReminderMissed, patientID, domain.ReminderMissedPayload{
		ReminderID:    r.ID,
		Medication:    r.Medication,
		ScheduledTime: r.ScheduledTime,
	}), nil
}

func (n *Normalizer) build(kind domain.NotificationKind, patientID string, payload domain.Payload) domain.Notification {
	return domain.Notification{
		ID:         n.newID(),
		Kind:       kind,
		PatientID:  patientID,
		Payload:    payload,
		OccurredAt: n.now(),
	}
}

func decodeRaw(raw domain.RawEvent, dst any) error {
	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		return missing("data")
	}
	if err := json.Unmarshal(raw.Data, dst); err != nil {
		return &domain.ValidationError{Field: "data", Reason: "malformed: " + err.Error()}
	}
	return nil
}

func missing(field string) *domain.ValidationError {
	return &domain.ValidationError{Field: field, Reason: "is required"}
}
