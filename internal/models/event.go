package models

import "time"

// Event is an association event members can register for.
type Event struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	VenueName      string     `json:"venue_name,omitempty"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	IsPaid         bool       `json:"is_paid"`
	FeeAmountPaise int64      `json:"fee_amount_paise"` // 0 for free events
	FeeCurrency    string     `json:"fee_currency"`
	CreatedBy      int64      `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
