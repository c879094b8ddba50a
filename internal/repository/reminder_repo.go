package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"care-relay/internal/domain"
)

var ErrReminderNotFound = errors.New("reminder not found")

// ReminderRepository es el camino de lectura del store externo de recordatorios.
// Las escrituras sobre taken ocurren fuera del relay.
type ReminderRepository interface {
	FindDueUnacknowledged(ctx context.Context, now time.Time) ([]domain.Reminder, error)
	GetByID(ctx context.Context, id string) (domain.Reminder, error)
}

// PgReminderRepository implementa ReminderRepository usando pgxpool.
type PgReminderRepository struct {
	pool *pgxpool.Pool
}

func NewPgReminderRepository(pool *pgxpool.Pool) *PgReminderRepository {
	return &PgReminderRepository{pool: pool}
}

func (r *PgReminderRepository) FindDueUnacknowledged(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	const query = `
		SELECT id, COALESCE(patient_id, ''), medication, scheduled_time, taken
		FROM reminders
		WHERE taken = false AND scheduled_time <= $1
		ORDER BY scheduled_time, id
	`
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		var rem domain.Reminder
		if err := rows.Scan(&rem.ID, &rem.PatientID, &rem.Medication, &rem.ScheduledTime, &rem.Taken); err != nil {
			return nil, err
		}
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}

func (r *PgReminderRepository) GetByID(ctx context.Context, id string) (domain.Reminder, error) {
	const query = `
		SELECT id, COALESCE(patient_id, ''), medication, scheduled_time, taken
		FROM reminders
		WHERE id = $1
	`
	var rem domain.Reminder
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rem.ID,
		&rem.PatientID,
		&rem.Medication,
		&rem.ScheduledTime,
		&rem.Taken,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reminder{}, ErrReminderNotFound
	}
	return rem, err
}
