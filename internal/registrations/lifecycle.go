package registrations

import "github.com/sangam-association/backend/internal/models"

// RejectReason says why a check-in was refused.
type RejectReason string

const (
	ReasonNotFound        RejectReason = "not_found"
	ReasonCancelled       RejectReason = "cancelled"
	ReasonAlreadyAttended RejectReason = "already_attended"
)

// Decision is the outcome of a check-in eligibility test.
type Decision struct {
	OK     bool
	Reason RejectReason
}

// CanCheckIn decides whether a registration may transition to attended.
// Attended and no-show are terminal for check-in purposes; only the
// check-in path may set attended_at, and only from the registered state.
func CanCheckIn(reg *models.Registration) Decision {
	if reg == nil {
		return Decision{Reason: ReasonNotFound}
	}
	switch reg.Status {
	case models.StatusRegistered:
		return Decision{OK: true}
	case models.StatusCancelled:
		return Decision{Reason: ReasonCancelled}
	case models.StatusAttended, models.StatusNoShow:
		return Decision{Reason: ReasonAlreadyAttended}
	default:
		return Decision{Reason: ReasonNotFound}
	}
}
