package repository

import (
	"context"

	"github.com/spec-kit/escalation-service/internal/domain"
)

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, username, email, role, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		string(user.Role),
		user.CreatedAt,
	)
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, username, email, role, created_at
        FROM users WHERE id=$1`

	var (
		user domain.User
		role string
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&role,
		&user.CreatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	user.Role = domain.Role(role)
	return &user, nil
}
