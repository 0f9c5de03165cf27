package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v4"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/events"
	"github.com/parkwise/parking-service/internal/pricing"
	"github.com/parkwise/parking-service/internal/repository"
	apperrors "github.com/parkwise/parking-service/pkg/util"
)

// ParkingService runs the check-in/check-out lifecycle of parking sessions.
type ParkingService struct {
	customers       repository.CustomerRepository
	sessions        repository.SessionRepository
	slots           *SlotService
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	tariff          pricing.Tariff
	location        *time.Location
	receiptAttempts int
	now             func() time.Time
}

// ParkingDependencies bundles collaborators for the parking service.
type ParkingDependencies struct {
	Customers  repository.CustomerRepository
	Sessions   repository.SessionRepository
	Slots      *SlotService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// ParkingSettings tunes billing and receipts. Zero values fall back to the
// reference tariff, UTC, five receipt attempts and the wall clock.
type ParkingSettings struct {
	Tariff          pricing.Tariff
	Location        *time.Location
	ReceiptAttempts int
	Now             func() time.Time
}

// CheckInInput describes a vehicle arriving at the lot.
type CheckInInput struct {
	NationalID string
	Vehicle    domain.Vehicle
	Actor      string
}

// NewParkingService constructs the service.
func NewParkingService(deps ParkingDependencies, settings ParkingSettings) *ParkingService {
	s := &ParkingService{
		customers:       deps.Customers,
		sessions:        deps.Sessions,
		slots:           deps.Slots,
		dispatcher:      deps.Dispatcher,
		logger:          deps.Logger,
		tariff:          settings.Tariff,
		location:        settings.Location,
		receiptAttempts: settings.ReceiptAttempts,
		now:             settings.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.tariff == (pricing.Tariff{}) {
		s.tariff = pricing.DefaultTariff
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.receiptAttempts < 1 {
		s.receiptAttempts = 5
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CheckIn opens a session for the customer's vehicle in a free slot.
//
// The receipt is derived from the entry time. When it is already taken a
// numeric suffix is appended ("-1", "-2", ...) until the attempts run out,
// which is reported as a conflict. Any failure after the slot was acquired
// releases it again.
func (s *ParkingService) CheckIn(ctx context.Context, in CheckInInput) (*domain.ParkingSession, error) {
	customer, err := s.customers.GetByNationalID(ctx, in.NationalID)
	if err != nil {
		return nil, notFoundOr(err, "customer", map[string]any{"national_id": in.NationalID})
	}

	slot, err := s.slots.AcquireFree(ctx)
	if err != nil {
		return nil, err
	}

	entry := s.now().In(s.location).Truncate(time.Second)
	base := domain.NewReceipt(entry)
	session := &domain.ParkingSession{
		CustomerID: customer.ID,
		SlotID:     slot.ID,
		Vehicle:    in.Vehicle,
		EntryTime:  entry,
	}

	for attempt := 0; attempt < s.receiptAttempts; attempt++ {
		session.Receipt = base
		if attempt > 0 {
			session.Receipt = fmt.Sprintf("%s-%d", base, attempt)
		}
		err = s.sessions.CreateOpen(ctx, session)
		if err == nil || repository.DuplicateConstraint(err) != repository.ConstraintSessionReceipt {
			break
		}
		s.logger.Debug("receipt taken, retrying", zap.String("receipt", session.Receipt))
	}
	if err != nil {
		s.releaseAfterFailure(ctx, slot)
		if repository.DuplicateConstraint(err) == repository.ConstraintSessionReceipt {
			return nil, apperrors.NewConflict("receipt collision", map[string]any{"receipt": base})
		}
		return nil, err
	}

	session.CustomerNationalID = customer.NationalID
	session.SlotCode = slot.Code
	s.logger.Info("session checked in",
		zap.String("receipt", session.Receipt),
		zap.String("slot", slot.Code),
		zap.String("customer_id", customer.ID),
	)
	s.publish(ctx, events.NewEvent(events.EventSessionCheckedIn, session.Receipt, in.Actor, entry, events.CheckedInPayload(session)))
	return session, nil
}

func (s *ParkingService) releaseAfterFailure(ctx context.Context, slot *domain.Slot) {
	if err := s.slots.Release(context.WithoutCancel(ctx), slot.ID); err != nil {
		s.logger.Error("failed to release slot after check-in failure",
			zap.String("slot_id", slot.ID),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("released slot after check-in failure", zap.String("slot", slot.Code))
}

// CheckOut closes the open session identified by receipt, bills it and frees
// its slot. Billing and release are persisted together.
func (s *ParkingService) CheckOut(ctx context.Context, receipt, actor string) (*domain.ParkingSession, error) {
	session, err := s.sessions.GetOpenByReceipt(ctx, receipt)
	if err != nil {
		return nil, notFoundOr(err, "parking session", map[string]any{"receipt": receipt})
	}

	exit := s.now().In(s.location).Truncate(time.Second)
	fee, err := s.tariff.Fee(session.EntryTime, exit)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("bill session %s: %w", receipt, err))
	}
	closed, err := s.customers.CountClosedSessions(ctx, session.CustomerID)
	if err != nil {
		return nil, err
	}
	discount := s.tariff.Discount(fee, closed)

	session.ExitTime = null.TimeFrom(exit)
	session.Fee = decimal.NewNullDecimal(fee)
	session.Discount = decimal.NewNullDecimal(discount)
	if err := s.sessions.CloseAndRelease(ctx, session); err != nil {
		return nil, notFoundOr(err, "parking session", map[string]any{"receipt": receipt})
	}

	s.localize(session)
	s.logger.Info("session checked out",
		zap.String("receipt", receipt),
		zap.String("slot", session.SlotCode),
		zap.String("fee", fee.StringFixed(2)),
		zap.String("discount", discount.StringFixed(2)),
		zap.Int64("closed_sessions", closed),
	)
	s.publish(ctx, events.NewEvent(events.EventSessionCheckedOut, receipt, actor, exit, events.CheckedOutPayload(session)))
	return session, nil
}

// GetOpenByReceipt returns an open session. Customers only see their own;
// other sessions are reported as missing.
func (s *ParkingService) GetOpenByReceipt(ctx context.Context, caller *domain.Identity, receipt string) (*domain.ParkingSession, error) {
	session, err := s.sessions.GetOpenByReceipt(ctx, receipt)
	if err != nil {
		return nil, notFoundOr(err, "parking session", map[string]any{"receipt": receipt})
	}
	if caller != nil && !caller.HasRole(domain.RoleAdmin) {
		customer, err := s.customers.GetByUserID(ctx, caller.UserID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if customer == nil || customer.ID != session.CustomerID {
			return nil, apperrors.NewNotFound("parking session", map[string]any{"receipt": receipt})
		}
	}
	s.localize(session)
	return session, nil
}

// ReceiptQRCode renders the receipt of an open session as a PNG QR code.
func (s *ParkingService) ReceiptQRCode(ctx context.Context, caller *domain.Identity, receipt string, size int) ([]byte, error) {
	session, err := s.GetOpenByReceipt(ctx, caller, receipt)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(session.Receipt, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode receipt qr code: %w", err)
	}
	return png, nil
}

// ListByNationalID returns the sessions of a customer, newest first.
func (s *ParkingService) ListByNationalID(ctx context.Context, nationalID string, limit, offset int) ([]domain.ParkingSession, int64, error) {
	sessions, total, err := s.sessions.ListByNationalID(ctx, nationalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range sessions {
		s.localize(&sessions[i])
	}
	return sessions, total, nil
}

// ListForUser returns the sessions of the customer owned by userID.
func (s *ParkingService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.ParkingSession, int64, error) {
	sessions, total, err := s.sessions.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range sessions {
		s.localize(&sessions[i])
	}
	return sessions, total, nil
}

func (s *ParkingService) localize(session *domain.ParkingSession) {
	session.EntryTime = session.EntryTime.In(s.location)
	if session.ExitTime.Valid {
		session.ExitTime = null.TimeFrom(session.ExitTime.Time.In(s.location))
	}
}

func (s *ParkingService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event delivery failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
