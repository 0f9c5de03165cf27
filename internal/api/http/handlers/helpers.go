package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/parkwise/parking-service/internal/api/dto"
	"github.com/parkwise/parking-service/internal/auth"
	"github.com/parkwise/parking-service/internal/domain"
	apperrors "github.com/parkwise/parking-service/pkg/util"
)

type validatable interface {
	Validate() error
}

// bind parses the JSON body into req and validates it.
func bind(c *fiber.Ctx, req validatable) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return req.Validate()
}

// caller returns the authenticated identity. The route policy guarantees one
// on protected routes; the check keeps handlers safe when mounted without it.
func caller(c *fiber.Ctx) (*domain.Identity, error) {
	identity, ok := auth.IdentityFromCtx(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return identity, nil
}

func pageQuery(c *fiber.Ctx) (dto.PageQuery, error) {
	var q dto.PageQuery
	if err := c.QueryParser(&q); err != nil {
		return q, apperrors.NewValidationError("invalid paging parameters", map[string]any{"query": "page and size must be integers"})
	}
	return q.Normalize(), nil
}

func page(c *fiber.Ctx, items any, q dto.PageQuery, total int64) error {
	return c.JSON(fiber.Map{
		"data": items,
		"meta": dto.NewPageMeta(q, total),
	})
}
