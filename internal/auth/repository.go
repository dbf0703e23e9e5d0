package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sangam-association/backend/internal/models"
)

// Repository looks up members for OTP login.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByPhone returns the member with the given phone, or nil when absent.
func (r *Repository) GetByPhone(ctx context.Context, phone string) (*models.Member, error) {
	const q = `SELECT id, full_name, phone, role, business_name, city, photo_key, created_at, updated_at
		FROM members WHERE phone = $1 AND deleted_at IS NULL`
	var m models.Member
	err := r.pool.QueryRow(ctx, q, phone).Scan(
		&m.ID, &m.FullName, &m.Phone, &m.Role, &m.BusinessName, &m.City, &m.PhotoKey, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
