package dto

import (
	"time"

	"github.com/parkwise/parking-service/internal/domain"
)

// CheckInRequest payload for POST /parking/check-in.
type CheckInRequest struct {
	NationalID string `json:"national_id"`
	Plate      string `json:"plate"`
	Brand      string `json:"brand"`
	Model      string `json:"model"`
	Color      string `json:"color"`
}

// Validate checks the CPF, the plate format and the vehicle description.
func (r CheckInRequest) Validate() error {
	return apply(
		required("national_id", r.NationalID),
		rule{field: "national_id", ok: ValidNationalID(r.NationalID), message: "must be a valid CPF"},
		required("plate", r.Plate),
		matches("plate", r.Plate, platePattern, "must follow the AAA-0000 pattern"),
		required("brand", r.Brand),
		required("model", r.Model),
		required("color", r.Color),
	)
}

// Vehicle converts the request into the domain vehicle.
func (r CheckInRequest) Vehicle() domain.Vehicle {
	return domain.Vehicle{Plate: r.Plate, Brand: r.Brand, Model: r.Model, Color: r.Color}
}

// SessionResponse is the public view of a parking session. Amounts are
// rendered with two decimal places and omitted while the session is open.
type SessionResponse struct {
	Receipt    string     `json:"receipt"`
	NationalID string     `json:"national_id"`
	SlotCode   string     `json:"slot_code"`
	Plate      string     `json:"plate"`
	Brand      string     `json:"brand"`
	Model      string     `json:"model"`
	Color      string     `json:"color"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
	Fee        *string    `json:"fee,omitempty"`
	Discount   *string    `json:"discount,omitempty"`
	Total      *string    `json:"total,omitempty"`
}

// NewSessionResponse maps a session.
func NewSessionResponse(s *domain.ParkingSession) SessionResponse {
	resp := SessionResponse{
		Receipt:    s.Receipt,
		NationalID: s.CustomerNationalID,
		SlotCode:   s.SlotCode,
		Plate:      s.Vehicle.Plate,
		Brand:      s.Vehicle.Brand,
		Model:      s.Vehicle.Model,
		Color:      s.Vehicle.Color,
		EntryTime:  s.EntryTime,
		ExitTime:   s.ExitTime.Ptr(),
	}
	if s.Fee.Valid {
		fee := s.Fee.Decimal.StringFixed(2)
		resp.Fee = &fee
		total := s.Total().StringFixed(2)
		resp.Total = &total
	}
	if s.Discount.Valid {
		discount := s.Discount.Decimal.StringFixed(2)
		resp.Discount = &discount
	}
	return resp
}

// NewSessionResponses maps a page of sessions.
func NewSessionResponses(sessions []domain.ParkingSession) []SessionResponse {
	items := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, NewSessionResponse(&sessions[i]))
	}
	return items
}
