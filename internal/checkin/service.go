// Package checkin validates scanned visitor-pass credentials and performs
// the exactly-once attendance transition at the venue gate.
package checkin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sangam-association/backend/internal/models"
	"github.com/sangam-association/backend/internal/qrtoken"
	"github.com/sangam-association/backend/internal/registrations"
)

// Reason says why a scan was refused.
type Reason string

const (
	ReasonInvalidToken    Reason = "invalid_token"
	ReasonNotFound        Reason = "not_found"
	ReasonCancelled       Reason = "cancelled"
	ReasonAlreadyAttended Reason = "already_attended"
)

// Result is the outcome of a scan. On success Member/Event/Registration are
// populated for the gate display.
type Result struct {
	Success      bool                 `json:"success"`
	Reason       Reason               `json:"reason,omitempty"`
	Member       *models.Member       `json:"member,omitempty"`
	Event        *models.Event        `json:"event,omitempty"`
	Registration *models.Registration `json:"registration,omitempty"`
}

// Store is the registration persistence the service needs.
type Store interface {
	GetDetail(ctx context.Context, id int64) (*models.RegistrationDetail, error)
	MarkAttended(ctx context.Context, id int64) (bool, error)
}

// Service decodes tokens and applies the attendance transition.
type Service struct {
	codec  *qrtoken.Codec
	store  Store
	logger *zap.Logger
}

// NewService creates a check-in service.
func NewService(codec *qrtoken.Codec, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{codec: codec, store: store, logger: logger}
}

// CheckIn validates a scanned token and marks the registration attended.
// Validation failures come back as a structured Result; the error return is
// reserved for infrastructure faults (database unreachable etc.).
//
// Concurrent scans of the same token race on the store's conditional
// attendance update, so exactly one succeeds and the rest see
// already_attended; there is no read-then-write window.
func (s *Service) CheckIn(ctx context.Context, token string) (*Result, error) {
	payload, ok := s.codec.Decode(token)
	if !ok {
		return &Result{Reason: ReasonInvalidToken}, nil
	}

	detail, err := s.store.GetDetail(ctx, payload.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("load registration: %w", err)
	}
	if detail == nil {
		return &Result{Reason: ReasonNotFound}, nil
	}
	reg := &detail.Registration

	// The signature already binds these ids; re-checking them against the
	// stored row is defense in depth, reported identically to a bad signature.
	if reg.EventID != payload.EventID || reg.MemberID != payload.MemberID {
		return &Result{Reason: ReasonInvalidToken}, nil
	}

	if d := registrations.CanCheckIn(reg); !d.OK {
		return &Result{Reason: Reason(d.Reason)}, nil
	}

	attended, err := s.store.MarkAttended(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("mark attended: %w", err)
	}
	if !attended {
		// A concurrent scan won the conditional update between our read and
		// write. Re-read so the refusal reason reflects the final state.
		fresh, err := s.store.GetDetail(ctx, reg.ID)
		if err != nil || fresh == nil {
			return &Result{Reason: ReasonAlreadyAttended}, nil
		}
		if d := registrations.CanCheckIn(&fresh.Registration); !d.OK {
			return &Result{Reason: Reason(d.Reason)}, nil
		}
		return &Result{Reason: ReasonAlreadyAttended}, nil
	}

	fresh, err := s.store.GetDetail(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("reload registration: %w", err)
	}
	s.logger.Info("checked in",
		zap.Int64("registration_id", reg.ID),
		zap.Int64("event_id", reg.EventID),
		zap.Int64("member_id", reg.MemberID))
	return &Result{
		Success:      true,
		Member:       &fresh.Member,
		Event:        &fresh.Event,
		Registration: &fresh.Registration,
	}, nil
}
