package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-voice/backend/internal/models"
)

// Repository handles operator persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns an operator by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	const q = `SELECT id, email, password_hash, role, created_at FROM operators WHERE id = $1`
	var o models.Operator
	err := r.pool.QueryRow(ctx, q, id).Scan(&o.ID, &o.Email, &o.PasswordHash, &o.Role, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByEmail returns an operator by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Operator, error) {
	const q = `SELECT id, email, password_hash, role, created_at FROM operators WHERE email = $1`
	var o models.Operator
	err := r.pool.QueryRow(ctx, q, email).Scan(&o.ID, &o.Email, &o.PasswordHash, &o.Role, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Count returns the number of operator accounts.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM operators`).Scan(&n)
	return n, err
}

// Create inserts a new operator.
func (r *Repository) Create(ctx context.Context, email, passwordHash string, role models.OperatorRole) (*models.Operator, error) {
	const q = `INSERT INTO operators (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, role, created_at`
	var o models.Operator
	err := r.pool.QueryRow(ctx, q, uuid.New(), email, passwordHash, string(role)).
		Scan(&o.ID, &o.Email, &o.PasswordHash, &o.Role, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
