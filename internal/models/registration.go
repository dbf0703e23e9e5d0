package models

import "time"

// RegistrationStatus is the attendance state of a registration.
type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "registered"
	StatusCancelled  RegistrationStatus = "cancelled"
	StatusAttended   RegistrationStatus = "attended"
	StatusNoShow     RegistrationStatus = "no_show"
)

// PaymentStatus is the payment sub-state, independent of attendance.
// A free event is registered+paid(0); a cash event can be attended+pending
// until the receipt is recorded.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// PassSendState tracks pass delivery for a registration. It replaces the
// usual sentinel-timestamp trick with an explicit state column; SentAt is
// only meaningful in state "sent".
type PassSendState string

const (
	SendUnsent  PassSendState = "unsent"
	SendSending PassSendState = "sending" // a worker holds the send-lock
	SendSent    PassSendState = "sent"
)

// Registration is one member's claim on one event slot. At most one active
// row exists per (event, member); re-registering after cancellation
// reactivates the existing row.
type Registration struct {
	ID                int64              `json:"id"`
	EventID           int64              `json:"event_id"`
	MemberID          int64              `json:"member_id"`
	Status            RegistrationStatus `json:"status"`
	PaymentStatus     PaymentStatus      `json:"payment_status"`
	AmountPaidPaise   int64              `json:"amount_paid_paise"`
	PaymentOrderID    *string            `json:"payment_order_id,omitempty"`
	PaymentID         *string            `json:"payment_id,omitempty"`
	CashReceiptNumber *string            `json:"cash_receipt_number,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	PassSendState     PassSendState      `json:"pass_send_state"`
	PassSentAt        *time.Time         `json:"pass_sent_at,omitempty"`
	PassKey           *string            `json:"pass_key,omitempty"` // archived PDF object key, if stored
	RegisteredAt      time.Time          `json:"registered_at"`
	AttendedAt        *time.Time         `json:"attended_at,omitempty"`
	CancelledAt       *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// RegistrationDetail bundles a registration with its member and event rows
// for display contexts (gate scanner, pass rendering, notification text).
type RegistrationDetail struct {
	Registration Registration `json:"registration"`
	Member       Member       `json:"member"`
	Event        Event        `json:"event"`
}
