package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/parkwise/parking-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionCheckedIn  EventType = "session.checked_in"
	EventSessionCheckedOut EventType = "session.checked_out"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Receipt   string      `json:"receipt"`
	Actor     string      `json:"actor,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps a new event with a random id.
func NewEvent(eventType EventType, receipt, actor string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Receipt:   receipt,
		Actor:     actor,
		Timestamp: at,
		Payload:   payload,
	}
}

// SessionCheckedInPayload payload.
type SessionCheckedInPayload struct {
	NationalID string    `json:"national_id"`
	SlotCode   string    `json:"slot_code"`
	Plate      string    `json:"plate"`
	EntryTime  time.Time `json:"entry_time"`
}

// SessionCheckedOutPayload payload.
type SessionCheckedOutPayload struct {
	NationalID string          `json:"national_id"`
	SlotCode   string          `json:"slot_code"`
	Plate      string          `json:"plate"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	Fee        decimal.Decimal `json:"fee"`
	Discount   decimal.Decimal `json:"discount"`
}

// CheckedInPayload builds the payload for a freshly opened session.
func CheckedInPayload(s *domain.ParkingSession) SessionCheckedInPayload {
	return SessionCheckedInPayload{
		NationalID: s.CustomerNationalID,
		SlotCode:   s.SlotCode,
		Plate:      s.Vehicle.Plate,
		EntryTime:  s.EntryTime,
	}
}

// CheckedOutPayload builds the payload for a closed session.
func CheckedOutPayload(s *domain.ParkingSession) SessionCheckedOutPayload {
	return SessionCheckedOutPayload{
		NationalID: s.CustomerNationalID,
		SlotCode:   s.SlotCode,
		Plate:      s.Vehicle.Plate,
		EntryTime:  s.EntryTime,
		ExitTime:   s.ExitTime.Time,
		Fee:        s.Fee.Decimal,
		Discount:   s.Discount.Decimal,
	}
}
