package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CaregiverRepository resuelve vínculos cuidador-paciente.
type CaregiverRepository interface {
	IsLinked(ctx context.Context, caregiverEmail, patientID string) (bool, error)
}

// PgCaregiverRepository implementa CaregiverRepository usando pgxpool.
type PgCaregiverRepository struct {
	pool *pgxpool.Pool
}

func NewPgCaregiverRepository(pool *pgxpool.Pool) *PgCaregiverRepository {
	return &PgCaregiverRepository{pool: pool}
}

func (r *PgCaregiverRepository) IsLinked(ctx context.Context, caregiverEmail, patientID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM caregivers
			WHERE lower(email) = lower($1) AND patient_id = $2
		)
	`
	var linked bool
	err := r.pool.QueryRow(ctx, query, caregiverEmail, patientID).Scan(&linked)
	return linked, err
}
