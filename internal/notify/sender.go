package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sangam-association/backend/internal/models"
)

// ErrNotConfigured is returned when no messaging credentials are present.
var ErrNotConfigured = errors.New("whatsapp messaging not configured")

// DocumentSender delivers a document message (WhatsApp Cloud API in
// production).
type DocumentSender interface {
	Configured() bool
	SendDocument(ctx context.Context, phone, filename, caption string, doc []byte) error
}

// FeedWriter records a feed entry for the operator who initiated a send.
// Writes are best effort; a feed failure never fails the send.
type FeedWriter interface {
	Record(ctx context.Context, n *models.Notification) error
}

// SendOutcome describes how a single send attempt concluded.
type SendOutcome struct {
	Delivered bool
	Skipped   bool
	Reason    string // skip reason, one of the Reason constants
}

// Sender runs the single-flight pass delivery protocol: acquire the
// send-lock, deliver over WhatsApp, finalize on success or release on
// failure. Both the direct path and the queue workers go through it, so
// the lock discipline is identical in degraded and normal mode.
type Sender struct {
	lock   Locker
	wa     DocumentSender
	feed   FeedWriter // may be nil
	logger *zap.Logger
}

// NewSender creates a pass sender. feed may be nil when no activity feed
// is wired.
func NewSender(lock Locker, wa DocumentSender, feed FeedWriter, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{lock: lock, wa: wa, feed: feed, logger: logger}
}

// Send delivers the rendered pass for one registration. Skip outcomes are
// not errors: an already-sent pass (without force) and a concurrent send
// in flight both return a skipped outcome and leave the row untouched.
func (s *Sender) Send(ctx context.Context, d *models.RegistrationDetail, pdf []byte, force bool, notifierID *int64) (SendOutcome, error) {
	regID := d.Registration.ID
	if !s.wa.Configured() {
		return SendOutcome{}, ErrNotConfigured
	}

	res, err := s.lock.Acquire(ctx, regID, force)
	if err != nil {
		return SendOutcome{}, fmt.Errorf("acquire send-lock: %w", err)
	}
	if !res.Acquired {
		switch res.Reason {
		case ReasonAlreadySent:
			s.logger.Info("pass already delivered, skipping",
				zap.Int64("registration_id", regID), zap.Timep("sent_at", res.SentAt))
		case ReasonLockHeld:
			s.logger.Info("send already in flight, skipping",
				zap.Int64("registration_id", regID))
		}
		return SendOutcome{Skipped: true, Reason: res.Reason}, nil
	}

	filename := fmt.Sprintf("pass-%d.pdf", regID)
	caption := fmt.Sprintf("Your visitor pass for %s", d.Event.Title)
	if err := s.wa.SendDocument(ctx, d.Member.Phone, filename, caption, pdf); err != nil {
		if relErr := s.lock.Release(ctx, regID); relErr != nil {
			s.logger.Error("send-lock release failed, registration stuck in sending",
				zap.Error(relErr), zap.Int64("registration_id", regID))
		}
		s.record(ctx, notifierID, models.NotificationKindPassFailed,
			fmt.Sprintf("Pass delivery to %s failed for %s", d.Member.FullName, d.Event.Title), d)
		return SendOutcome{}, fmt.Errorf("send pass: %w", err)
	}

	finalized, err := s.lock.Finalize(ctx, regID)
	if err != nil {
		return SendOutcome{}, fmt.Errorf("finalize send-lock: %w", err)
	}
	if !finalized {
		s.logger.Warn("send-lock was released mid-send, delivery recorded by another actor",
			zap.Int64("registration_id", regID))
	}
	s.record(ctx, notifierID, models.NotificationKindPassSent,
		fmt.Sprintf("Pass delivered to %s for %s", d.Member.FullName, d.Event.Title), d)
	s.logger.Info("pass delivered",
		zap.Int64("registration_id", regID), zap.Int64("member_id", d.Member.ID))
	return SendOutcome{Delivered: true}, nil
}

func (s *Sender) record(ctx context.Context, notifierID *int64, kind, message string, d *models.RegistrationDetail) {
	if s.feed == nil || notifierID == nil {
		return
	}
	regID := d.Registration.ID
	eventID := d.Event.ID
	n := &models.Notification{
		UserID:         *notifierID,
		Kind:           kind,
		Message:        message,
		RegistrationID: &regID,
		EventID:        &eventID,
	}
	if err := s.feed.Record(ctx, n); err != nil {
		s.logger.Warn("feed write failed", zap.Error(err), zap.Int64("registration_id", regID))
	}
}
