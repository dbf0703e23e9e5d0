package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sangam-association/backend/internal/models"
)

const eventColumns = `id, title, description, venue_name, starts_at, ends_at,
	is_paid, fee_amount_paise, fee_currency, created_by, created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.VenueName, &e.StartsAt, &e.EndsAt,
		&e.IsPaid, &e.FeeAmountPaise, &e.FeeCurrency, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts an event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, venue_name, starts_at, ends_at, is_paid, fee_amount_paise, fee_currency, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		e.Title, e.Description, e.VenueName, e.StartsAt, e.EndsAt,
		e.IsPaid, e.FeeAmountPaise, e.FeeCurrency, e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.pool.QueryRow(ctx, q, id))
}

// List returns events, newest start first. upcomingOnly restricts to future events.
func (r *Repository) List(ctx context.Context, upcomingOnly bool) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events`
	if upcomingOnly {
		q += ` WHERE starts_at > NOW()`
	}
	q += ` ORDER BY starts_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Update patches mutable event fields.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET
		title = $2, description = $3, venue_name = $4, starts_at = $5, ends_at = $6,
		is_paid = $7, fee_amount_paise = $8, fee_currency = $9, updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q,
		e.ID, e.Title, e.Description, e.VenueName, e.StartsAt, e.EndsAt,
		e.IsPaid, e.FeeAmountPaise, e.FeeCurrency,
	)
	return err
}
