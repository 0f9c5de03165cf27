package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/parkwise/parking-service/internal/api/dto"
	"github.com/parkwise/parking-service/internal/service"
	apperrors "github.com/parkwise/parking-service/pkg/util"
)

const maxQRCodeSize = 1024

// ParkingHandler exposes the check-in/check-out lifecycle.
type ParkingHandler struct {
	parking *service.ParkingService
}

// NewParkingHandler constructs handler.
func NewParkingHandler(parking *service.ParkingService) *ParkingHandler {
	return &ParkingHandler{parking: parking}
}

// CheckIn handles POST /api/v1/parking/check-in.
func (h *ParkingHandler) CheckIn(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.CheckInRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.parking.CheckIn(c.UserContext(), service.CheckInInput{
		NationalID: req.NationalID,
		Vehicle:    req.Vehicle(),
		Actor:      identity.Username,
	})
	if err != nil {
		return err
	}
	c.Location("/api/v1/parking/check-in/" + session.Receipt)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// Get handles GET /api/v1/parking/check-in/:receipt.
func (h *ParkingHandler) Get(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	session, err := h.parking.GetOpenByReceipt(c.UserContext(), identity, c.Params("receipt"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// QRCode handles GET /api/v1/parking/check-in/:receipt/qrcode.
func (h *ParkingHandler) QRCode(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	size := c.QueryInt("size", 0)
	if size < 0 || size > maxQRCodeSize {
		return apperrors.NewValidationError("invalid qr code size", map[string]any{"size": "must be between 1 and 1024"})
	}
	png, err := h.parking.ReceiptQRCode(c.UserContext(), identity, c.Params("receipt"), size)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

// CheckOut handles PUT /api/v1/parking/check-out/:receipt.
func (h *ParkingHandler) CheckOut(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	receipt := c.Params("receipt")
	if !dto.ValidReceipt(receipt) {
		return apperrors.NewNotFound("parking session", map[string]any{"receipt": receipt})
	}
	session, err := h.parking.CheckOut(c.UserContext(), receipt, identity.Username)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// ListByNationalID handles GET /api/v1/parking/national-id/:nationalId.
func (h *ParkingHandler) ListByNationalID(c *fiber.Ctx) error {
	q, err := pageQuery(c)
	if err != nil {
		return err
	}
	sessions, total, err := h.parking.ListByNationalID(c.UserContext(), c.Params("nationalId"), q.Limit(), q.Offset())
	if err != nil {
		return err
	}
	return page(c, dto.NewSessionResponses(sessions), q, total)
}

// ListMine handles GET /api/v1/parking, the caller's own sessions.
func (h *ParkingHandler) ListMine(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	q, err := pageQuery(c)
	if err != nil {
		return err
	}
	sessions, total, err := h.parking.ListForUser(c.UserContext(), identity.UserID, q.Limit(), q.Offset())
	if err != nil {
		return err
	}
	return page(c, dto.NewSessionResponses(sessions), q, total)
}
