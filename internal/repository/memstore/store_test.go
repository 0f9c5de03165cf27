package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/repository"
)

func seedSlots(t *testing.T, store *Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		slot := &domain.Slot{Code: fmt.Sprintf("A-%02d", i), Status: domain.SlotStatusFree}
		require.NoError(t, store.Slots().Create(context.Background(), slot))
	}
}

func seedCustomer(t *testing.T, store *Store, nationalID string) *domain.Customer {
	t.Helper()
	ctx := context.Background()
	user := &domain.User{Username: nationalID + "@mail.com", Role: domain.RoleCustomer}
	require.NoError(t, store.Users().Create(ctx, user))
	customer := &domain.Customer{Name: "Ana", NationalID: nationalID, UserID: user.ID}
	require.NoError(t, store.Customers().Create(ctx, customer))
	return customer
}

func TestAcquireFreeIsExclusive(t *testing.T) {
	const free, callers = 5, 40
	store := New()
	seedSlots(t, store, free)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired = make(map[string]int)
		misses   int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := store.Slots().AcquireFree(context.Background())
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, repository.ErrNotFound) {
				misses++
				return
			}
			if assert.NoError(t, err) {
				acquired[slot.ID]++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, acquired, free)
	assert.Equal(t, callers-free, misses)
	for id, n := range acquired {
		assert.Equal(t, 1, n, "slot %s handed out more than once", id)
	}

	occupancy, err := store.Slots().Occupancy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Occupancy{Free: 0, Occupied: free}, occupancy)
}

func TestAcquireFreePicksLowestCode(t *testing.T) {
	store := New()
	ctx := context.Background()
	for _, code := range []string{"C-01", "A-01", "B-01"} {
		require.NoError(t, store.Slots().Create(ctx, &domain.Slot{Code: code, Status: domain.SlotStatusFree}))
	}

	slot, err := store.Slots().AcquireFree(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A-01", slot.Code)
	assert.Equal(t, domain.SlotStatusOccupied, slot.Status)
}

func TestReleaseIsIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()
	seedSlots(t, store, 1)

	slot, err := store.Slots().AcquireFree(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Slots().Release(ctx, slot.ID))
	require.NoError(t, store.Slots().Release(ctx, slot.ID))

	found, err := store.Slots().GetByCode(ctx, slot.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.SlotStatusFree, found.Status)
	assert.ErrorIs(t, store.Slots().Release(ctx, "missing"), repository.ErrNotFound)
}

func TestUniqueConstraints(t *testing.T) {
	store := New()
	ctx := context.Background()
	customer := seedCustomer(t, store, "52998224725")

	err := store.Users().Create(ctx, &domain.User{Username: "52998224725@mail.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.Equal(t, repository.ConstraintUsername, repository.DuplicateConstraint(err))

	err = store.Customers().Create(ctx, &domain.Customer{NationalID: customer.NationalID, UserID: "x"})
	assert.Equal(t, repository.ConstraintCustomerNationalID, repository.DuplicateConstraint(err))

	err = store.Customers().Create(ctx, &domain.Customer{NationalID: "11144477735", UserID: customer.UserID})
	assert.Equal(t, repository.ConstraintCustomerUserID, repository.DuplicateConstraint(err))

	seedSlots(t, store, 1)
	err = store.Slots().Create(ctx, &domain.Slot{Code: "A-00", Status: domain.SlotStatusFree})
	assert.Equal(t, repository.ConstraintSlotCode, repository.DuplicateConstraint(err))
}

func TestSessionLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()
	customer := seedCustomer(t, store, "52998224725")
	seedSlots(t, store, 2)

	slot, err := store.Slots().AcquireFree(ctx)
	require.NoError(t, err)
	entry := time.Date(2024, time.March, 7, 9, 5, 3, 0, time.UTC)
	session := &domain.ParkingSession{
		CustomerID: customer.ID,
		SlotID:     slot.ID,
		Receipt:    domain.NewReceipt(entry),
		Vehicle:    domain.Vehicle{Plate: "ABC-1234", Brand: "Fiat", Model: "Uno", Color: "Red"},
		EntryTime:  entry,
	}
	require.NoError(t, store.Sessions().CreateOpen(ctx, session))
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, customer.NationalID, session.CustomerNationalID)
	assert.Equal(t, slot.Code, session.SlotCode)

	other, err := store.Slots().AcquireFree(ctx)
	require.NoError(t, err)
	err = store.Sessions().CreateOpen(ctx, &domain.ParkingSession{
		CustomerID: customer.ID, SlotID: other.ID, Receipt: session.Receipt, EntryTime: entry,
	})
	assert.Equal(t, repository.ConstraintSessionReceipt, repository.DuplicateConstraint(err))

	open, err := store.Sessions().GetOpenByReceipt(ctx, session.Receipt)
	require.NoError(t, err)
	open.ExitTime = null.TimeFrom(entry.Add(61 * time.Minute))
	open.Fee = decimal.NewNullDecimal(decimal.RequireFromString("11.00"))
	open.Discount = decimal.NewNullDecimal(decimal.Zero)
	require.NoError(t, store.Sessions().CloseAndRelease(ctx, open))

	assert.ErrorIs(t, store.Sessions().CloseAndRelease(ctx, open), repository.ErrNotFound)
	_, err = store.Sessions().GetOpenByReceipt(ctx, session.Receipt)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	freed, err := store.Slots().GetByCode(ctx, slot.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.SlotStatusFree, freed.Status)

	closed, err := store.Customers().CountClosedSessions(ctx, customer.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, closed)

	history, total, err := store.Sessions().ListByNationalID(ctx, customer.NationalID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, history, 1)
	assert.Equal(t, "11.00", history[0].Fee.Decimal.StringFixed(2))

	mine, total, err := store.Sessions().ListByUserID(ctx, customer.UserID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, mine, 1)
}

func TestCloseRequiresBilling(t *testing.T) {
	store := New()
	err := store.Sessions().CloseAndRelease(context.Background(), &domain.ParkingSession{ID: "x"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}

func TestListPaging(t *testing.T) {
	store := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Users().Create(ctx, &domain.User{Username: fmt.Sprintf("user%d@mail.com", i)}))
	}

	users, total, err := store.Users().List(ctx, 2, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, users, 1)

	users, _, err = store.Users().List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, users)
}
