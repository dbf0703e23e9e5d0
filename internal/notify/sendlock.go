// Package notify delivers visitor passes over WhatsApp. A per-registration
// send-lock makes delivery single-flight: of any number of concurrent send
// requests for one registration exactly one proceeds, and a pass already
// delivered is never delivered again unless the operator forces a resend.
package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sangam-association/backend/internal/models"
)

// Skip reasons reported by Acquire when the lock is not granted.
const (
	ReasonLockHeld    = "lock_held"
	ReasonAlreadySent = "already_sent"
)

// AcquireResult is the outcome of a lock attempt.
type AcquireResult struct {
	Acquired bool
	Reason   string     // set when not acquired
	SentAt   *time.Time // set when Reason is ReasonAlreadySent
}

// Locker is the send-lock contract the sender runs against.
type Locker interface {
	Acquire(ctx context.Context, registrationID int64, force bool) (AcquireResult, error)
	Release(ctx context.Context, registrationID int64) error
	Finalize(ctx context.Context, registrationID int64) (bool, error)
}

// SendLock is the Postgres send-lock. State lives in the registration row
// itself (pass_send_state, pass_sent_at), so the lock survives process
// restarts and is visible to every instance sharing the database.
type SendLock struct {
	pool *pgxpool.Pool
}

// NewSendLock creates a send-lock over the shared pool.
func NewSendLock(pool *pgxpool.Pool) *SendLock {
	return &SendLock{pool: pool}
}

// Acquire attempts to take the send-lock for a registration. The row lock
// (SELECT ... FOR UPDATE) serializes concurrent attempts; the state check
// and the transition to 'sending' happen in one transaction, so two
// concurrent callers can never both acquire. force bypasses the
// already-sent check but never a lock held by a running send.
func (l *SendLock) Acquire(ctx context.Context, registrationID int64, force bool) (AcquireResult, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return AcquireResult{}, err
	}
	defer tx.Rollback(ctx)

	var state models.PassSendState
	var sentAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT pass_send_state, pass_sent_at FROM registrations WHERE id = $1 FOR UPDATE`,
		registrationID).Scan(&state, &sentAt)
	if err != nil {
		return AcquireResult{}, err
	}

	switch {
	case state == models.SendSending:
		return AcquireResult{Reason: ReasonLockHeld}, nil
	case state == models.SendSent && !force:
		return AcquireResult{Reason: ReasonAlreadySent, SentAt: sentAt}, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE registrations SET pass_send_state = 'sending', updated_at = NOW() WHERE id = $1`,
		registrationID); err != nil {
		return AcquireResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return AcquireResult{}, err
	}
	return AcquireResult{Acquired: true}, nil
}

// Release resets the registration to unsent after a failed send. The reset
// is unconditional: it clears pass_sent_at too, so a failed forced resend
// leaves the row eligible for a plain retry.
func (l *SendLock) Release(ctx context.Context, registrationID int64) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE registrations SET pass_send_state = 'unsent', pass_sent_at = NULL, updated_at = NOW() WHERE id = $1`,
		registrationID)
	return err
}

// Finalize marks the pass delivered. The transition only fires while the
// row is still 'sending'; if the lock was released out from under this
// holder, finalize is a no-op and reports false. The lock carries no
// holder token, so a release-then-reacquire between send and finalize is
// indistinguishable from this holder's own lock.
func (l *SendLock) Finalize(ctx context.Context, registrationID int64) (bool, error) {
	tag, err := l.pool.Exec(ctx,
		`UPDATE registrations
		 SET pass_send_state = 'sent', pass_sent_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND pass_send_state = 'sending'`,
		registrationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
