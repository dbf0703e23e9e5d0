package members

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sangam-association/backend/internal/models"
)

const memberColumns = `id, full_name, phone, role, business_name, city, photo_key, created_at, updated_at`

// Repository handles member persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a members repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMember(row pgx.Row) (*models.Member, error) {
	var m models.Member
	err := row.Scan(&m.ID, &m.FullName, &m.Phone, &m.Role, &m.BusinessName, &m.City, &m.PhotoKey, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a member.
func (r *Repository) Create(ctx context.Context, m *models.Member) error {
	const q = `INSERT INTO members (full_name, phone, role, business_name, city)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, m.FullName, m.Phone, m.Role, m.BusinessName, m.City).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// GetByID returns a member by ID, or nil when absent or soft-deleted.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	const q = `SELECT ` + memberColumns + ` FROM members WHERE id = $1 AND deleted_at IS NULL`
	return scanMember(r.pool.QueryRow(ctx, q, id))
}

// List returns members, optionally filtered by a name/business search term.
func (r *Repository) List(ctx context.Context, search string, limit, offset int) ([]models.Member, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + memberColumns + ` FROM members WHERE deleted_at IS NULL`
	args := []interface{}{}
	if search != "" {
		q += ` AND (full_name ILIKE '%' || $1 || '%' OR business_name ILIKE '%' || $1 || '%')`
		args = append(args, search)
	}
	q += ` ORDER BY full_name`
	if search != "" {
		q += ` LIMIT $2 OFFSET $3`
	} else {
		q += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// Update patches mutable profile fields.
func (r *Repository) Update(ctx context.Context, m *models.Member) error {
	const q = `UPDATE members SET
		full_name = $2, business_name = $3, city = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, q, m.ID, m.FullName, m.BusinessName, m.City)
	return err
}

// SetPhotoKey stores the member's profile photo object key.
func (r *Repository) SetPhotoKey(ctx context.Context, id int64, key string) error {
	const q = `UPDATE members SET photo_key = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, q, id, key)
	return err
}

// SoftDelete marks a member deleted without removing history rows.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	const q = `UPDATE members SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}
