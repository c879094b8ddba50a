package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"care-relay/internal/domain"
)

// UserRepository define la lectura de usuarios que necesita el relay.
type UserRepository interface {
	ListPatients(ctx context.Context, limit int) ([]domain.User, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) ListPatients(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT id, name, email, role, created_at
		FROM users
		WHERE role = 'patient'
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = domain.ParseRole(role)
		users = append(users, u)
	}
	return users, rows.Err()
}
