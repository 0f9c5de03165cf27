package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"gopkg.in/guregu/null.v4"

	"github.com/parkwise/parking-service/internal/domain"
)

// Unique constraints surfaced through DuplicateError.
const (
	ConstraintUsername           = "users_username_key"
	ConstraintCustomerNationalID = "customers_national_id_key"
	ConstraintCustomerUserID     = "customers_user_id_key"
	ConstraintSlotCode           = "parking_slots_code_key"
	ConstraintSessionReceipt     = "parking_sessions_receipt_key"
	ConstraintSessionOpenSlot    = "parking_sessions_open_slot_idx"
)

// SessionRepository persists parking sessions.
type SessionRepository interface {
	// CreateOpen inserts a session without exit time. A taken receipt yields
	// a DuplicateError on ConstraintSessionReceipt.
	CreateOpen(ctx context.Context, session *domain.ParkingSession) error
	GetOpenByReceipt(ctx context.Context, receipt string) (*domain.ParkingSession, error)
	// CloseAndRelease stores exit time, fee and discount and frees the slot
	// in one transaction. It returns ErrNotFound when the session is no
	// longer open.
	CloseAndRelease(ctx context.Context, session *domain.ParkingSession) error
	ListByNationalID(ctx context.Context, nationalID string, limit, offset int) ([]domain.ParkingSession, int64, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]domain.ParkingSession, int64, error)
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository instantiates repository.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

const sessionSelect = `
        SELECT s.id, s.customer_id, c.national_id, s.slot_id, sl.code, s.receipt,
               s.plate, s.brand, s.model, s.color,
               s.entry_time, s.exit_time, s.fee::text, s.discount::text
        FROM parking_sessions s
        JOIN customers c ON c.id = s.customer_id
        JOIN parking_slots sl ON sl.id = s.slot_id`

func (r *sessionRepository) CreateOpen(ctx context.Context, session *domain.ParkingSession) error {
	const query = `
        INSERT INTO parking_sessions (receipt, customer_id, slot_id, plate, brand, model, color, entry_time)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		session.Receipt,
		session.CustomerID,
		session.SlotID,
		session.Vehicle.Plate,
		session.Vehicle.Brand,
		session.Vehicle.Model,
		session.Vehicle.Color,
		session.EntryTime,
	).Scan(&session.ID)
	return translate(err)
}

func (r *sessionRepository) GetOpenByReceipt(ctx context.Context, receipt string) (*domain.ParkingSession, error) {
	query := sessionSelect + ` WHERE s.receipt=$1 AND s.exit_time IS NULL`
	return scanSession(r.pool.QueryRow(ctx, query, receipt))
}

func (r *sessionRepository) CloseAndRelease(ctx context.Context, session *domain.ParkingSession) (err error) {
	if !session.ExitTime.Valid || !session.Fee.Valid || !session.Discount.Valid {
		return errors.New("close session: exit time, fee and discount are required")
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const query = `
        UPDATE parking_sessions SET exit_time=$1, fee=$2::numeric, discount=$3::numeric
        WHERE id=$4 AND exit_time IS NULL`

	cmd, err := tx.Exec(ctx, query,
		session.ExitTime.Time,
		session.Fee.Decimal.String(),
		session.Discount.Decimal.String(),
		session.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err = releaseSlot(ctx, tx, session.SlotID); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *sessionRepository) ListByNationalID(ctx context.Context, nationalID string, limit, offset int) ([]domain.ParkingSession, int64, error) {
	const count = `
        SELECT COUNT(*) FROM parking_sessions s
        JOIN customers c ON c.id = s.customer_id
        WHERE c.national_id=$1`
	return r.list(ctx, count, sessionSelect+` WHERE c.national_id=$1`, nationalID, limit, offset)
}

func (r *sessionRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]domain.ParkingSession, int64, error) {
	const count = `
        SELECT COUNT(*) FROM parking_sessions s
        JOIN customers c ON c.id = s.customer_id
        WHERE c.user_id=$1`
	return r.list(ctx, count, sessionSelect+` WHERE c.user_id=$1`, userID, limit, offset)
}

func (r *sessionRepository) list(ctx context.Context, countQuery, query, key string, limit, offset int) ([]domain.ParkingSession, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, key).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, query+` ORDER BY s.entry_time DESC, s.receipt DESC LIMIT $2 OFFSET $3`, key, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sessions := make([]domain.ParkingSession, 0, limit)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, total, rows.Err()
}

func scanSession(row pgx.Row) (*domain.ParkingSession, error) {
	var (
		session  domain.ParkingSession
		exitTime *time.Time
		fee      *string
		discount *string
	)
	if err := row.Scan(
		&session.ID,
		&session.CustomerID,
		&session.CustomerNationalID,
		&session.SlotID,
		&session.SlotCode,
		&session.Receipt,
		&session.Vehicle.Plate,
		&session.Vehicle.Brand,
		&session.Vehicle.Model,
		&session.Vehicle.Color,
		&session.EntryTime,
		&exitTime,
		&fee,
		&discount,
	); err != nil {
		return nil, translate(err)
	}

	session.ExitTime = null.TimeFromPtr(exitTime)
	var err error
	if session.Fee, err = parseNullDecimal(fee); err != nil {
		return nil, fmt.Errorf("scan fee: %w", err)
	}
	if session.Discount, err = parseNullDecimal(discount); err != nil {
		return nil, fmt.Errorf("scan discount: %w", err)
	}
	return &session, nil
}

func parseNullDecimal(raw *string) (decimal.NullDecimal, error) {
	if raw == nil {
		return decimal.NullDecimal{}, nil
	}
	value, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(value), nil
}
