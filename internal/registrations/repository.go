package registrations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sangam-association/backend/internal/models"
)

const registrationColumns = `id, event_id, member_id, status, payment_status, amount_paid_paise,
	payment_order_id, payment_id, cash_receipt_number, notes,
	pass_send_state, pass_sent_at, pass_key,
	registered_at, attended_at, cancelled_at, created_at, updated_at`

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.MemberID, &reg.Status, &reg.PaymentStatus, &reg.AmountPaidPaise,
		&reg.PaymentOrderID, &reg.PaymentID, &reg.CashReceiptNumber, &reg.Notes,
		&reg.PassSendState, &reg.PassSentAt, &reg.PassKey,
		&reg.RegisteredAt, &reg.AttendedAt, &reg.CancelledAt, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// Register inserts a registration or reactivates a cancelled one. The
// unique (event_id, member_id) constraint means a member holds at most one
// row per event; re-registering flips a cancelled row back to registered
// and resets its pass delivery state instead of duplicating.
func (r *Repository) Register(ctx context.Context, eventID, memberID int64, notes string) (*models.Registration, error) {
	const q = `INSERT INTO registrations (event_id, member_id, notes)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, member_id) DO UPDATE SET
			status = CASE WHEN registrations.status = 'cancelled' THEN 'registered' ELSE registrations.status END,
			cancelled_at = CASE WHEN registrations.status = 'cancelled' THEN NULL ELSE registrations.cancelled_at END,
			pass_send_state = CASE WHEN registrations.status = 'cancelled' THEN 'unsent' ELSE registrations.pass_send_state END,
			pass_sent_at = CASE WHEN registrations.status = 'cancelled' THEN NULL ELSE registrations.pass_sent_at END,
			registered_at = CASE WHEN registrations.status = 'cancelled' THEN NOW() ELSE registrations.registered_at END,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING ` + registrationColumns
	return scanRegistration(r.pool.QueryRow(ctx, q, eventID, memberID, notes))
}

// GetByID returns a registration by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return scanRegistration(r.pool.QueryRow(ctx, q, id))
}

// GetDetail returns a registration joined with its member and event,
// or nil when the registration is absent.
func (r *Repository) GetDetail(ctx context.Context, id int64) (*models.RegistrationDetail, error) {
	const q = `SELECT
		r.id, r.event_id, r.member_id, r.status, r.payment_status, r.amount_paid_paise,
		r.payment_order_id, r.payment_id, r.cash_receipt_number, r.notes,
		r.pass_send_state, r.pass_sent_at, r.pass_key,
		r.registered_at, r.attended_at, r.cancelled_at, r.created_at, r.updated_at,
		m.id, m.full_name, m.phone, m.role, m.business_name, m.city, m.photo_key, m.created_at, m.updated_at,
		e.id, e.title, e.description, e.venue_name, e.starts_at, e.ends_at,
		e.is_paid, e.fee_amount_paise, e.fee_currency, e.created_by, e.created_at, e.updated_at
		FROM registrations r
		JOIN members m ON m.id = r.member_id
		JOIN events e ON e.id = r.event_id
		WHERE r.id = $1`
	var d models.RegistrationDetail
	reg := &d.Registration
	m := &d.Member
	e := &d.Event
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&reg.ID, &reg.EventID, &reg.MemberID, &reg.Status, &reg.PaymentStatus, &reg.AmountPaidPaise,
		&reg.PaymentOrderID, &reg.PaymentID, &reg.CashReceiptNumber, &reg.Notes,
		&reg.PassSendState, &reg.PassSentAt, &reg.PassKey,
		&reg.RegisteredAt, &reg.AttendedAt, &reg.CancelledAt, &reg.CreatedAt, &reg.UpdatedAt,
		&m.ID, &m.FullName, &m.Phone, &m.Role, &m.BusinessName, &m.City, &m.PhotoKey, &m.CreatedAt, &m.UpdatedAt,
		&e.ID, &e.Title, &e.Description, &e.VenueName, &e.StartsAt, &e.EndsAt,
		&e.IsPaid, &e.FeeAmountPaise, &e.FeeCurrency, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// MarkAttended performs the exactly-once attendance transition. The
// conditional WHERE clause is the concurrency guard: of N concurrent
// scans only one update matches, the rest see attended=false.
func (r *Repository) MarkAttended(ctx context.Context, id int64) (bool, error) {
	const q = `UPDATE registrations
		SET status = 'attended', attended_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'registered' AND attended_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Cancel moves a registered row to cancelled. Payment state is untouched;
// refunds are a separate explicit action.
func (r *Repository) Cancel(ctx context.Context, id int64) (bool, error) {
	const q = `UPDATE registrations
		SET status = 'cancelled', cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'registered'`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkNoShow flags a registered row as no_show after the event closes.
func (r *Repository) MarkNoShow(ctx context.Context, id int64) (bool, error) {
	const q = `UPDATE registrations
		SET status = 'no_show', updated_at = NOW()
		WHERE id = $1 AND status = 'registered'`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkPaid records a confirmed payment on the independent payment axis.
func (r *Repository) MarkPaid(ctx context.Context, id, amountPaise int64, orderID, paymentID string) error {
	const q = `UPDATE registrations
		SET payment_status = 'paid', amount_paid_paise = $2,
		    payment_order_id = NULLIF($3, ''), payment_id = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, amountPaise, orderID, paymentID)
	return err
}

// MarkPaymentFailed records a failed payment attempt.
func (r *Repository) MarkPaymentFailed(ctx context.Context, id int64, orderID string) error {
	const q = `UPDATE registrations
		SET payment_status = 'failed', payment_order_id = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, orderID)
	return err
}

// Refund marks the payment refunded. Explicit admin action, never automatic on cancel.
func (r *Repository) Refund(ctx context.Context, id int64) error {
	const q = `UPDATE registrations
		SET payment_status = 'refunded', updated_at = NOW()
		WHERE id = $1 AND payment_status = 'paid'`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// RecordCashReceipt records a manually collected cash payment.
func (r *Repository) RecordCashReceipt(ctx context.Context, id, amountPaise int64, receiptNumber string) error {
	const q = `UPDATE registrations
		SET payment_status = 'paid', amount_paid_paise = $2, cash_receipt_number = $3, updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, amountPaise, receiptNumber)
	return err
}

// SetPassKey stores the archived pass object key after rendering.
func (r *Repository) SetPassKey(ctx context.Context, id int64, key string) error {
	const q = `UPDATE registrations SET pass_key = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, key)
	return err
}

// ListByEvent returns registrations for an event, optionally filtered by status.
func (r *Repository) ListByEvent(ctx context.Context, eventID int64, status models.RegistrationStatus) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1`
	args := []interface{}{eventID}
	if status != "" {
		q += ` AND status = $2`
		args = append(args, status)
	}
	q += ` ORDER BY registered_at DESC`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// ListByMember returns a member's registrations, newest first.
func (r *Repository) ListByMember(ctx context.Context, memberID int64) ([]models.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations WHERE member_id = $1 ORDER BY registered_at DESC`
	rows, err := r.pool.Query(ctx, q, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// CountByEvent returns total, attended and cancelled counts for an event.
func (r *Repository) CountByEvent(ctx context.Context, eventID int64) (total, attended, cancelled int, err error) {
	const q = `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE status = 'attended'),
		COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM registrations WHERE event_id = $1`
	err = r.pool.QueryRow(ctx, q, eventID).Scan(&total, &attended, &cancelled)
	return total, attended, cancelled, err
}

// BulkRegister registers a batch of members for an event, reactivating any
// cancelled rows. Returns the affected registrations in member order.
func (r *Repository) BulkRegister(ctx context.Context, eventID int64, memberIDs []int64) ([]models.Registration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO registrations (event_id, member_id)
		VALUES ($1, $2)
		ON CONFLICT (event_id, member_id) DO UPDATE SET
			status = CASE WHEN registrations.status = 'cancelled' THEN 'registered' ELSE registrations.status END,
			cancelled_at = CASE WHEN registrations.status = 'cancelled' THEN NULL ELSE registrations.cancelled_at END,
			pass_send_state = CASE WHEN registrations.status = 'cancelled' THEN 'unsent' ELSE registrations.pass_send_state END,
			pass_sent_at = CASE WHEN registrations.status = 'cancelled' THEN NULL ELSE registrations.pass_sent_at END,
			registered_at = CASE WHEN registrations.status = 'cancelled' THEN NOW() ELSE registrations.registered_at END,
			updated_at = NOW()
		RETURNING ` + registrationColumns

	regs := make([]models.Registration, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		reg, err := scanRegistration(tx.QueryRow(ctx, q, eventID, memberID))
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return regs, nil
}
