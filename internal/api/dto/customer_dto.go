package dto

import (
	"time"

	"github.com/parkwise/parking-service/internal/domain"
)

// CreateCustomerRequest payload for POST /customers.
type CreateCustomerRequest struct {
	Name       string `json:"name"`
	NationalID string `json:"national_id"`
}

// Validate checks the name length and the CPF check digits.
func (r CreateCustomerRequest) Validate() error {
	return apply(
		required("name", r.Name),
		lengthBetween("name", r.Name, 3, 100),
		required("national_id", r.NationalID),
		rule{field: "national_id", ok: ValidNationalID(r.NationalID), message: "must be a valid CPF"},
	)
}

// CustomerResponse is the public view of a customer profile.
type CustomerResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	NationalID string    `json:"national_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewCustomerResponse maps a customer.
func NewCustomerResponse(c *domain.Customer) CustomerResponse {
	return CustomerResponse{ID: c.ID, Name: c.Name, NationalID: c.NationalID, CreatedAt: c.CreatedAt}
}
