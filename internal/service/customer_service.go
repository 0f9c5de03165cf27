package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/repository"
	apperrors "github.com/parkwise/parking-service/pkg/util"
)

// CustomerService manages customer profiles. Each user owns at most one.
type CustomerService struct {
	customers repository.CustomerRepository
	logger    *zap.Logger
}

// NewCustomerService constructs the service.
func NewCustomerService(customers repository.CustomerRepository, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{customers: customers, logger: logger}
}

// Create registers the caller's customer profile.
func (s *CustomerService) Create(ctx context.Context, caller *domain.Identity, name, nationalID string) (*domain.Customer, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	customer := &domain.Customer{Name: name, NationalID: nationalID, UserID: caller.UserID}
	if err := s.customers.Create(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if repository.DuplicateConstraint(err) == repository.ConstraintCustomerUserID {
				return nil, apperrors.NewConflict("customer profile already exists", map[string]any{"user_id": caller.UserID})
			}
			return nil, apperrors.NewConflict("national id already registered", map[string]any{"national_id": nationalID})
		}
		return nil, err
	}

	s.logger.Info("customer created", zap.String("customer_id", customer.ID), zap.String("user_id", caller.UserID))
	return customer, nil
}

// List returns a page of customers.
func (s *CustomerService) List(ctx context.Context, limit, offset int) ([]domain.Customer, int64, error) {
	return s.customers.List(ctx, limit, offset)
}

// GetForUser returns the profile owned by userID.
func (s *CustomerService) GetForUser(ctx context.Context, userID string) (*domain.Customer, error) {
	customer, err := s.customers.GetByUserID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "customer", map[string]any{"user_id": userID})
	}
	return customer, nil
}

// GetByNationalID returns the profile registered under nationalID.
func (s *CustomerService) GetByNationalID(ctx context.Context, nationalID string) (*domain.Customer, error) {
	customer, err := s.customers.GetByNationalID(ctx, nationalID)
	if err != nil {
		return nil, notFoundOr(err, "customer", map[string]any{"national_id": nationalID})
	}
	return customer, nil
}
