package domain

import "time"

// SlotStatus enumerates slot occupancy states.
type SlotStatus string

const (
	SlotStatusFree     SlotStatus = "FREE"
	SlotStatusOccupied SlotStatus = "OCCUPIED"
)

// Valid reports whether s is a known status.
func (s SlotStatus) Valid() bool {
	return s == SlotStatusFree || s == SlotStatusOccupied
}

// Slot is a single parking space.
type Slot struct {
	ID        string
	Code      string
	Status    SlotStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Occupancy summarizes slot usage.
type Occupancy struct {
	Free     int64
	Occupied int64
}
