package models

import "time"

// Member roles.
const (
	RoleMember    = "member"
	RoleGateStaff = "gate_staff"
	RoleAdmin     = "admin"
)

// Member is an association member identified by mobile number.
type Member struct {
	ID           int64      `json:"id"`
	FullName     string     `json:"full_name"`
	Phone        string     `json:"phone"` // E.164, unique; OTP login identity
	Role         string     `json:"role"`
	BusinessName string     `json:"business_name,omitempty"`
	City         string     `json:"city,omitempty"`
	PhotoKey     *string    `json:"photo_key,omitempty"` // S3 object key in the media bucket
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}
