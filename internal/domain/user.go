package domain

import "time"

// Role identifica el tipo de cuenta detrás de una identidad.
type Role string

const (
	RoleUnknown   Role = ""
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
	RoleAdmin     Role = "admin"
)

// ParseRole normaliza un rol recibido en claims o configuración.
func ParseRole(s string) Role {
	switch Role(s) {
	case RolePatient, RoleCaregiver, RoleAdmin:
		return Role(s)
	default:
		return RoleUnknown
	}
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
