package service

import (
	"errors"

	"github.com/parkwise/parking-service/internal/repository"
	apperrors "github.com/parkwise/parking-service/pkg/util"
)

// notFoundOr translates repository.ErrNotFound into a NOT_FOUND domain error
// and passes every other error through.
func notFoundOr(err error, resource string, details map[string]any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return err
}
