package domain

import "time"

// Reminder es la vista de solo lectura de un recordatorio de medicación.
// Taken solo pasa de false a true.
type Reminder struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patientId"`
	Medication    string    `json:"medication"`
	ScheduledTime time.Time `json:"scheduledTime"`
	Taken         bool      `json:"taken"`
}

// IsDue reporta si el recordatorio está vencido y sin confirmar en now.
func (r Reminder) IsDue(now time.Time) bool {
	return !r.Taken && !r.ScheduledTime.After(now)
}
