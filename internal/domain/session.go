package domain

import "time"

// Identity es la capacidad que el autenticador externo entrega al conectar.
// El relay no la valida por su cuenta: solo la usa para decidir audiencia y grupos.
type Identity struct {
	Token   string `json:"-"`
	Subject string `json:"subject,omitempty"`
	Role    Role   `json:"role,omitempty"`
	Email   string `json:"email,omitempty"`
}

// ReceivesAlerts indica si la sesión forma parte de la audiencia de cuidadores.
// Una identidad sin rol (modo opaco) se trata como cuidador.
func (i Identity) ReceivesAlerts() bool {
	return i.Role != RolePatient
}

// SessionInfo es la vista serializable de una sesión viva.
type SessionInfo struct {
	ID          string    `json:"id"`
	Identity    Identity  `json:"identity"`
	Groups      []string  `json:"groups"`
	ConnectedAt time.Time `json:"connected_at"`
}
