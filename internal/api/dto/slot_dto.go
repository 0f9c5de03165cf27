package dto

import (
	"time"

	"github.com/parkwise/parking-service/internal/domain"
)

// CreateSlotRequest payload for POST /slots.
type CreateSlotRequest struct {
	Code   string            `json:"code"`
	Status domain.SlotStatus `json:"status"`
}

// Validate checks the code length and, when given, that the status is FREE.
func (r CreateSlotRequest) Validate() error {
	return apply(
		required("code", r.Code),
		lengthBetween("code", r.Code, 4, 4),
		rule{field: "status", ok: r.Status == "" || r.Status == domain.SlotStatusFree, message: "new slots must be FREE"},
	)
}

// SlotResponse is the public view of a slot.
type SlotResponse struct {
	ID        string            `json:"id"`
	Code      string            `json:"code"`
	Status    domain.SlotStatus `json:"status"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewSlotResponse maps a slot.
func NewSlotResponse(s *domain.Slot) SlotResponse {
	return SlotResponse{ID: s.ID, Code: s.Code, Status: s.Status, UpdatedAt: s.UpdatedAt}
}

// OccupancyResponse counts slots by status.
type OccupancyResponse struct {
	Free     int64 `json:"free"`
	Occupied int64 `json:"occupied"`
}
