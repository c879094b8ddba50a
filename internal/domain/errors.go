package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed   = errors.New("session closed")
	ErrDeliveryTimeout = errors.New("delivery timeout")
)

// ValidationError describe un evento crudo mal formado.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// TransportError es una falla de entrega aislada a una sesión.
type TransportError struct {
	SessionID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: session %s: %v", e.SessionID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StoreUnavailable envuelve una falla de consulta al store de recordatorios.
type StoreUnavailable struct {
	Err error
}

func (e *StoreUnavailable) Error() string {
	return fmt.Sprintf("reminder store unavailable: %v", e.Err)
}

func (e *StoreUnavailable) Unwrap() error { return e.Err }
