package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/parkwise/parking-service/internal/auth"
	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/events"
	"github.com/parkwise/parking-service/internal/pricing"
	"github.com/parkwise/parking-service/internal/repository/memstore"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store      *memstore.Store
	clock      *testClock
	location   *time.Location
	dispatcher events.Dispatcher
	auth       *AuthService
	customers  *CustomerService
	slots      *SlotService
	parking    *ParkingService

	mu       sync.Mutex
	received []events.Event
}

func newFixture(t *testing.T, attempts int) *fixture {
	t.Helper()
	location, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	f := &fixture{
		store:      memstore.New(),
		clock:      &testClock{now: time.Date(2024, time.March, 7, 12, 5, 3, 0, time.UTC)},
		location:   location,
		dispatcher: events.NewInMemoryDispatcher(),
	}
	record := func(_ context.Context, e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.received = append(f.received, e)
		return nil
	}
	f.dispatcher.Subscribe(record, events.EventSessionCheckedIn, events.EventSessionCheckedOut)

	tokens, err := auth.NewTokenManager(map[string][]byte{"k1": []byte("test-secret")}, "k1", 30*time.Minute, auth.WithClock(f.clock.Now))
	require.NoError(t, err)

	f.auth = NewAuthService(f.store.Users(), tokens, bcrypt.MinCost, nil)
	f.customers = NewCustomerService(f.store.Customers(), nil)
	f.slots = NewSlotService(f.store.Slots(), nil)
	f.parking = NewParkingService(ParkingDependencies{
		Customers:  f.store.Customers(),
		Sessions:   f.store.Sessions(),
		Slots:      f.slots,
		Dispatcher: f.dispatcher,
	}, ParkingSettings{
		Tariff:          pricing.DefaultTariff,
		Location:        location,
		ReceiptAttempts: attempts,
		Now:             f.clock.Now,
	})
	return f
}

func (f *fixture) identity(user *domain.User) *domain.Identity {
	return &domain.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
}

func (f *fixture) customer(t *testing.T, username, nationalID string) (*domain.Customer, *domain.Identity) {
	t.Helper()
	ctx := context.Background()
	user, err := f.auth.Register(ctx, username, "secret1")
	require.NoError(t, err)
	caller := f.identity(user)
	customer, err := f.customers.Create(ctx, caller, "Customer "+nationalID, nationalID)
	require.NoError(t, err)
	return customer, caller
}

func (f *fixture) slot(t *testing.T, code string) *domain.Slot {
	t.Helper()
	slot, err := f.slots.Create(context.Background(), code, domain.SlotStatusFree)
	require.NoError(t, err)
	return slot
}

func (f *fixture) slotStatus(t *testing.T, code string) domain.SlotStatus {
	t.Helper()
	slot, err := f.slots.GetByCode(context.Background(), code)
	require.NoError(t, err)
	return slot.Status
}

func (f *fixture) events() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.received...)
}
