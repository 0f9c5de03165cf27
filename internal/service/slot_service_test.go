package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkwise/parking-service/internal/domain"
	apperrors "github.com/parkwise/parking-service/pkg/util"
)

func TestSlotCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		status domain.SlotStatus
		field  string
	}{
		{name: "short code", code: "A01", field: "code"},
		{name: "long code", code: "A-001", field: "code"},
		{name: "unknown status", code: "A-01", status: "BROKEN", field: "status"},
		{name: "occupied without session", code: "A-01", status: domain.SlotStatusOccupied, field: "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 5)
			_, err := f.slots.Create(context.Background(), tt.code, tt.status)
			de := apperrors.ToDomainError(err)
			assert.Equal(t, apperrors.CodeValidationFailed, de.Code)
			assert.Contains(t, de.Details, tt.field)
		})
	}
}

func TestSlotLifecycle(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	created := f.slot(t, "A-01")
	assert.Equal(t, domain.SlotStatusFree, created.Status)
	_, err := f.slots.Create(ctx, "A-01", domain.SlotStatusFree)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	acquired, err := f.slots.AcquireFree(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A-01", acquired.Code)

	_, err = f.slots.AcquireFree(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	occupancy, err := f.slots.Occupancy(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Occupancy{Occupied: 1}, occupancy)

	require.NoError(t, f.slots.Release(ctx, acquired.ID))
	require.NoError(t, f.slots.Release(ctx, acquired.ID))
	assert.Equal(t, domain.SlotStatusFree, f.slotStatus(t, "A-01"))

	err = f.slots.Release(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.slots.GetByCode(ctx, "Z-99")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
