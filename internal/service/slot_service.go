package service

import (
	"context"
	"errors"
	"net/http"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/repository"
	apperrors "github.com/parkwise/parking-service/pkg/util"
)

// SlotCodeLength is the fixed length of slot codes.
const SlotCodeLength = 4

// SlotService allocates and manages parking slots.
type SlotService struct {
	slots  repository.SlotRepository
	logger *zap.Logger
}

// NewSlotService constructs the service.
func NewSlotService(slots repository.SlotRepository, logger *zap.Logger) *SlotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{slots: slots, logger: logger}
}

// Create registers a slot. New slots are always FREE: a slot only becomes
// OCCUPIED through a check-in, so the status may be empty or FREE.
func (s *SlotService) Create(ctx context.Context, code string, status domain.SlotStatus) (*domain.Slot, error) {
	if utf8.RuneCountInString(code) != SlotCodeLength {
		return nil, apperrors.NewValidationError("invalid slot", map[string]any{"code": "must have exactly 4 characters"})
	}
	if status == "" {
		status = domain.SlotStatusFree
	}
	if status != domain.SlotStatusFree {
		return nil, apperrors.NewValidationError("invalid slot", map[string]any{"status": "new slots must be FREE"})
	}

	slot := &domain.Slot{Code: code, Status: status}
	if err := s.slots.Create(ctx, slot); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("slot code already registered", map[string]any{"code": code})
		}
		return nil, err
	}
	return slot, nil
}

// GetByCode returns a slot by its code.
func (s *SlotService) GetByCode(ctx context.Context, code string) (*domain.Slot, error) {
	slot, err := s.slots.GetByCode(ctx, code)
	if err != nil {
		return nil, notFoundOr(err, "slot", map[string]any{"code": code})
	}
	return slot, nil
}

// AcquireFree reserves one free slot. Concurrent callers never receive the
// same slot.
func (s *SlotService) AcquireFree(ctx context.Context) (*domain.Slot, error) {
	slot, err := s.slots.AcquireFree(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewDomainError(apperrors.CodeNotFound, "no free slot", http.StatusNotFound, nil)
		}
		return nil, err
	}
	s.logger.Debug("slot acquired", zap.String("slot_id", slot.ID), zap.String("code", slot.Code))
	return slot, nil
}

// Release frees a slot. Releasing a free slot is a no-op.
func (s *SlotService) Release(ctx context.Context, id string) error {
	if err := s.slots.Release(ctx, id); err != nil {
		return notFoundOr(err, "slot", map[string]any{"id": id})
	}
	return nil
}

// Occupancy counts free and occupied slots.
func (s *SlotService) Occupancy(ctx context.Context) (domain.Occupancy, error) {
	return s.slots.Occupancy(ctx)
}
