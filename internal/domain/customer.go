package domain

import "time"

// Customer owns the vehicles parked in the lot. One per user account.
type Customer struct {
	ID         string
	Name       string
	NationalID string
	UserID     string
	CreatedAt  time.Time
}
