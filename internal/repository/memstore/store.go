// Package memstore keeps every repository in process memory. It backs the
// service when no database is configured and is used by the service tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/repository"
)

// Store holds all records behind a single lock so multi-record operations
// are atomic.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	users       map[string]domain.User
	usernames   map[string]string
	customers   map[string]domain.Customer
	nationalIDs map[string]string
	customerOf  map[string]string
	slots       map[string]domain.Slot
	slotCodes   map[string]string
	sessions    map[string]domain.ParkingSession
	receipts    map[string]string
	openBySlot  map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:         time.Now,
		users:       make(map[string]domain.User),
		usernames:   make(map[string]string),
		customers:   make(map[string]domain.Customer),
		nationalIDs: make(map[string]string),
		customerOf:  make(map[string]string),
		slots:       make(map[string]domain.Slot),
		slotCodes:   make(map[string]string),
		sessions:    make(map[string]domain.ParkingSession),
		receipts:    make(map[string]string),
		openBySlot:  make(map[string]string),
	}
}

// Users exposes the store as a UserRepository.
func (s *Store) Users() repository.UserRepository { return userStore{s} }

// Customers exposes the store as a CustomerRepository.
func (s *Store) Customers() repository.CustomerRepository { return customerStore{s} }

// Slots exposes the store as a SlotRepository.
func (s *Store) Slots() repository.SlotRepository { return slotStore{s} }

// Sessions exposes the store as a SessionRepository.
func (s *Store) Sessions() repository.SessionRepository { return sessionStore{s} }

func duplicate(constraint string) error {
	return &repository.DuplicateError{Constraint: constraint}
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) || limit <= 0 {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return append([]T(nil), items[offset:end]...)
}

type userStore struct{ *Store }

func (s userStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usernames[user.Username]; taken {
		return duplicate(repository.ConstraintUsername)
	}
	now := s.now()
	user.ID = uuid.NewString()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	s.usernames[user.Username] = user.ID
	return nil
}

func (s userStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = s.now()
	s.users[id] = user
	return nil
}

func (s userStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (s userStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	id, ok := s.usernames[username]
	s.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s userStore) List(_ context.Context, limit, offset int) ([]domain.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].Username < users[j].Username
	})
	return page(users, limit, offset), int64(len(users)), nil
}

type customerStore struct{ *Store }

func (s customerStore) Create(_ context.Context, customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.nationalIDs[customer.NationalID]; taken {
		return duplicate(repository.ConstraintCustomerNationalID)
	}
	if _, taken := s.customerOf[customer.UserID]; taken {
		return duplicate(repository.ConstraintCustomerUserID)
	}
	if _, ok := s.users[customer.UserID]; !ok {
		return errors.New("memstore: customer references unknown user")
	}
	customer.ID = uuid.NewString()
	customer.CreatedAt = s.now()
	s.customers[customer.ID] = *customer
	s.nationalIDs[customer.NationalID] = customer.ID
	s.customerOf[customer.UserID] = customer.ID
	return nil
}

func (s customerStore) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customerLocked(id)
}

func (s customerStore) GetByNationalID(_ context.Context, nationalID string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customerLocked(s.nationalIDs[nationalID])
}

func (s customerStore) GetByUserID(_ context.Context, userID string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customerLocked(s.customerOf[userID])
}

func (s *Store) customerLocked(id string) (*domain.Customer, error) {
	customer, ok := s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &customer, nil
}

func (s customerStore) List(_ context.Context, limit, offset int) ([]domain.Customer, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		customers = append(customers, customer)
	}
	sort.Slice(customers, func(i, j int) bool {
		if customers[i].Name != customers[j].Name {
			return customers[i].Name < customers[j].Name
		}
		return customers[i].NationalID < customers[j].NationalID
	})
	return page(customers, limit, offset), int64(len(customers)), nil
}

func (s customerStore) CountClosedSessions(_ context.Context, customerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, session := range s.sessions {
		if session.CustomerID == customerID && !session.Open() {
			count++
		}
	}
	return count, nil
}

type slotStore struct{ *Store }

func (s slotStore) Create(_ context.Context, slot *domain.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.slotCodes[slot.Code]; taken {
		return duplicate(repository.ConstraintSlotCode)
	}
	now := s.now()
	slot.ID = uuid.NewString()
	slot.CreatedAt, slot.UpdatedAt = now, now
	s.slots[slot.ID] = *slot
	s.slotCodes[slot.Code] = slot.ID
	return nil
}

func (s slotStore) GetByCode(_ context.Context, code string) (*domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[s.slotCodes[code]]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &slot, nil
}

// AcquireFree hands out the free slot with the lowest code.
func (s slotStore) AcquireFree(_ context.Context) (*domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chosen *domain.Slot
	for _, slot := range s.slots {
		if slot.Status != domain.SlotStatusFree {
			continue
		}
		if chosen == nil || slot.Code < chosen.Code {
			candidate := slot
			chosen = &candidate
		}
	}
	if chosen == nil {
		return nil, repository.ErrNotFound
	}
	chosen.Status = domain.SlotStatusOccupied
	chosen.UpdatedAt = s.now()
	s.slots[chosen.ID] = *chosen
	return chosen, nil
}

func (s slotStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(id)
}

func (s *Store) releaseLocked(id string) error {
	slot, ok := s.slots[id]
	if !ok {
		return repository.ErrNotFound
	}
	if slot.Status == domain.SlotStatusFree {
		return nil
	}
	slot.Status = domain.SlotStatusFree
	slot.UpdatedAt = s.now()
	s.slots[id] = slot
	return nil
}

func (s slotStore) Occupancy(_ context.Context) (domain.Occupancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var occupancy domain.Occupancy
	for _, slot := range s.slots {
		switch slot.Status {
		case domain.SlotStatusFree:
			occupancy.Free++
		case domain.SlotStatusOccupied:
			occupancy.Occupied++
		}
	}
	return occupancy, nil
}

type sessionStore struct{ *Store }

func (s sessionStore) CreateOpen(_ context.Context, session *domain.ParkingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.receipts[session.Receipt]; taken {
		return duplicate(repository.ConstraintSessionReceipt)
	}
	if _, taken := s.openBySlot[session.SlotID]; taken {
		return duplicate(repository.ConstraintSessionOpenSlot)
	}
	customer, ok := s.customers[session.CustomerID]
	if !ok {
		return errors.New("memstore: session references unknown customer")
	}
	slot, ok := s.slots[session.SlotID]
	if !ok {
		return errors.New("memstore: session references unknown slot")
	}

	session.ID = uuid.NewString()
	session.CustomerNationalID = customer.NationalID
	session.SlotCode = slot.Code
	s.sessions[session.ID] = *session
	s.receipts[session.Receipt] = session.ID
	s.openBySlot[session.SlotID] = session.ID
	return nil
}

func (s sessionStore) GetOpenByReceipt(_ context.Context, receipt string) (*domain.ParkingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[s.receipts[receipt]]
	if !ok || !session.Open() {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (s sessionStore) CloseAndRelease(_ context.Context, session *domain.ParkingSession) error {
	if !session.ExitTime.Valid || !session.Fee.Valid || !session.Discount.Valid {
		return errors.New("close session: exit time, fee and discount are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[session.ID]
	if !ok || !stored.Open() {
		return repository.ErrNotFound
	}
	if err := s.releaseLocked(stored.SlotID); err != nil {
		return err
	}
	stored.ExitTime = session.ExitTime
	stored.Fee = session.Fee
	stored.Discount = session.Discount
	s.sessions[stored.ID] = stored
	delete(s.openBySlot, stored.SlotID)
	return nil
}

func (s sessionStore) ListByNationalID(_ context.Context, nationalID string, limit, offset int) ([]domain.ParkingSession, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(s.nationalIDs[nationalID], limit, offset)
}

func (s sessionStore) ListByUserID(_ context.Context, userID string, limit, offset int) ([]domain.ParkingSession, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(s.customerOf[userID], limit, offset)
}

func (s *Store) listLocked(customerID string, limit, offset int) ([]domain.ParkingSession, int64, error) {
	sessions := make([]domain.ParkingSession, 0)
	if customerID == "" {
		return sessions, 0, nil
	}
	for _, session := range s.sessions {
		if session.CustomerID == customerID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].EntryTime.Equal(sessions[j].EntryTime) {
			return sessions[i].EntryTime.After(sessions[j].EntryTime)
		}
		return sessions[i].Receipt > sessions[j].Receipt
	})
	return page(sessions, limit, offset), int64(len(sessions)), nil
}
