package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/parkwise/parking-service/internal/api/dto"
	"github.com/parkwise/parking-service/internal/service"
)

// SlotsHandler exposes slot administration.
type SlotsHandler struct {
	slots *service.SlotService
}

// NewSlotsHandler constructs handler.
func NewSlotsHandler(slots *service.SlotService) *SlotsHandler {
	return &SlotsHandler{slots: slots}
}

// Create handles POST /api/v1/slots.
func (h *SlotsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateSlotRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	slot, err := h.slots.Create(c.UserContext(), req.Code, req.Status)
	if err != nil {
		return err
	}
	c.Location("/api/v1/slots/" + slot.Code)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSlotResponse(slot)})
}

// Get handles GET /api/v1/slots/:code.
func (h *SlotsHandler) Get(c *fiber.Ctx) error {
	slot, err := h.slots.GetByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSlotResponse(slot)})
}
