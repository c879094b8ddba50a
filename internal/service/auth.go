package service

import (
	"context"
	"errors"
	"strings"

	"care-relay/internal/domain"
	"care-relay/internal/repository"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrJoinForbidden   = errors.New("join forbidden")
)

// Authenticator convierte el token presentado al conectar en una Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

type opaqueAuthenticator struct{}

// NewOpaqueAuthenticator acepta cualquier token como identidad opaca, sin rol.
func NewOpaqueAuthenticator() Authenticator { return opaqueAuthenticator{} }

func (opaqueAuthenticator) Authenticate(_ context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	return domain.Identity{Token: token, Subject: token}, nil
}

type jwtAuthenticator struct {
	jwt *JWTService
}

// NewJWTAuthenticator verifica access tokens HS256 y toma subject, rol y email de los claims.
func NewJWTAuthenticator(jwtSvc *JWTService) Authenticator {
	return &jwtAuthenticator{jwt: jwtSvc}
}

func (a *jwtAuthenticator) Authenticate(_ context.Context, token string) (domain.Identity, error) {
	if a.jwt == nil {
		return domain.Identity{}, ErrUnauthenticated
	}
	claims, err := a.jwt.ParseAccessToken(token)
	if err != nil {
		return domain.Identity{}, errors.Join(ErrUnauthenticated, err)
	}
	return domain.Identity{
		Token:   token,
		Subject: claims.UserID,
		Role:    domain.ParseRole(claims.Role),
		Email:   claims.Email,
	}, nil
}

// JoinAuthorizer es el punto de control para join_patient.
type JoinAuthorizer interface {
	AuthorizeJoin(ctx context.Context, identity domain.Identity, patientID string) error
}

type openAuthorizer struct{}

// NewOpenAuthorizer permite que cualquier sesión se una a cualquier paciente.
func NewOpenAuthorizer() JoinAuthorizer { return openAuthorizer{} }

func (openAuthorizer) AuthorizeJoin(context.Context, domain.Identity, string) error { return nil }

type linkedCaregiverAuthorizer struct {
	caregivers repository.CaregiverRepository
}

// NewLinkedCaregiverAuthorizer exige un vínculo cuidador-paciente registrado.
// Los pacientes solo pueden unirse a su propio grupo y los admins a cualquiera.
func NewLinkedCaregiverAuthorizer(caregivers repository.CaregiverRepository) JoinAuthorizer {
	return &linkedCaregiverAuthorizer{caregivers: caregivers}
}

func (a *linkedCaregiverAuthorizer) AuthorizeJoin(ctx context.Context, identity domain.Identity, patientID string) error {
	switch identity.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RolePatient:
		if identity.Subject == patientID {
			return nil
		}
		return ErrJoinForbidden
	case domain.RoleCaregiver:
		if identity.Email == "" || a.caregivers == nil {
			return ErrJoinForbidden
		}
		linked, err := a.caregivers.IsLinked(ctx, identity.Email, patientID)
		if err != nil {
			return err
		}
		if !linked {
			return ErrJoinForbidden
		}
		return nil
	default:
		return ErrJoinForbidden
	}
}
