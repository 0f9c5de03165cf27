package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/parkwise/parking-service/internal/api/dto"
	"github.com/parkwise/parking-service/internal/service"
)

// CustomersHandler exposes customer profile endpoints.
type CustomersHandler struct {
	customers *service.CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customers *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{customers: customers}
}

// Create handles POST /api/v1/customers.
func (h *CustomersHandler) Create(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.CreateCustomerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	customer, err := h.customers.Create(c.UserContext(), identity, req.Name, req.NationalID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}

// List handles GET /api/v1/customers.
func (h *CustomersHandler) List(c *fiber.Ctx) error {
	q, err := pageQuery(c)
	if err != nil {
		return err
	}
	customers, total, err := h.customers.List(c.UserContext(), q.Limit(), q.Offset())
	if err != nil {
		return err
	}
	items := make([]dto.CustomerResponse, 0, len(customers))
	for i := range customers {
		items = append(items, dto.NewCustomerResponse(&customers[i]))
	}
	return page(c, items, q, total)
}

// Details handles GET /api/v1/customers/details, the caller's own profile.
func (h *CustomersHandler) Details(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return err
	}
	customer, err := h.customers.GetForUser(c.UserContext(), identity.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}
