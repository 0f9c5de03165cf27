package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkwise/parking-service/internal/domain"
)

// SlotRepository persists parking slots. AcquireFree is the only way a slot
// becomes OCCUPIED and must be atomic.
type SlotRepository interface {
	Create(ctx context.Context, slot *domain.Slot) error
	GetByCode(ctx context.Context, code string) (*domain.Slot, error)
	AcquireFree(ctx context.Context) (*domain.Slot, error)
	Release(ctx context.Context, id string) error
	Occupancy(ctx context.Context) (domain.Occupancy, error)
}

type slotRepository struct {
	pool *pgxpool.Pool
}

// NewSlotRepository instantiates repository.
func NewSlotRepository(pool *pgxpool.Pool) SlotRepository {
	return &slotRepository{pool: pool}
}

const slotColumns = `id, code, status, created_at, updated_at`

func (r *slotRepository) Create(ctx context.Context, slot *domain.Slot) error {
	const query = `
        INSERT INTO parking_slots (code, status)
        VALUES ($1, $2)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, slot.Code, slot.Status).
		Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
	return translate(err)
}

func (r *slotRepository) GetByCode(ctx context.Context, code string) (*domain.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM parking_slots WHERE code=$1`
	return scanSlot(r.pool.QueryRow(ctx, query, code))
}

// AcquireFree flips the first free slot to OCCUPIED in one statement. Rows
// locked by a concurrent acquire are skipped instead of waited on.
func (r *slotRepository) AcquireFree(ctx context.Context) (*domain.Slot, error) {
	const query = `
        UPDATE parking_slots SET status='OCCUPIED', updated_at=NOW()
        WHERE id = (
            SELECT id FROM parking_slots
            WHERE status='FREE'
            ORDER BY code
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        ) AND status='FREE'
        RETURNING ` + slotColumns

	return scanSlot(r.pool.QueryRow(ctx, query))
}

func (r *slotRepository) Release(ctx context.Context, id string) error {
	return releaseSlot(ctx, r.pool, id)
}

func (r *slotRepository) Occupancy(ctx context.Context) (domain.Occupancy, error) {
	const query = `
        SELECT
            COUNT(*) FILTER (WHERE status='FREE'),
            COUNT(*) FILTER (WHERE status='OCCUPIED')
        FROM parking_slots`

	var occupancy domain.Occupancy
	err := r.pool.QueryRow(ctx, query).Scan(&occupancy.Free, &occupancy.Occupied)
	return occupancy, err
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// releaseSlot is a no-op for slots that are already free.
func releaseSlot(ctx context.Context, db execer, id string) error {
	const exists = `SELECT 1 FROM parking_slots WHERE id=$1`
	const query = `
        UPDATE parking_slots SET status='FREE', updated_at=NOW()
        WHERE id=$1 AND status='OCCUPIED'`

	cmd, err := db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	cmd, err = db.Exec(ctx, exists, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSlot(row pgx.Row) (*domain.Slot, error) {
	var slot domain.Slot
	if err := row.Scan(
		&slot.ID,
		&slot.Code,
		&slot.Status,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &slot, nil
}
