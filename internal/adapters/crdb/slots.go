package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
)

const slotColumns = "id, owner_id, start_at, end_at, price, reduction, slot_type"

func scanSlot(row pgx.Row) (domain.Slot, error) {
	var s domain.Slot
	err := row.Scan(&s.ID, &s.OwnerID, &s.Start, &s.End, &s.Price, &s.Reduction, &s.Type)
	if err == pgx.ErrNoRows {
		return domain.Slot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Slot{}, err
	}
	return s, nil
}

func collectSlots(rows pgx.Rows) ([]domain.Slot, error) {
	defer rows.Close()
	var slots []domain.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// OwnerHasOverlap reports whether the owner already has a slot intersecting
// [start, end), excluding the given slot id.
func (r *Repository) OwnerHasOverlap(ctx context.Context, tx pgx.Tx, ownerID, exclude uuid.UUID, start, end time.Time) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM slots
			WHERE owner_id = $1 AND id != $2 AND start_at < $4 AND end_at > $3
		)
	`, ownerID, exclude, start, end).Scan(&exists)
	return exists, err
}

func (r *Repository) CreateSlot(ctx context.Context, tx pgx.Tx, slot domain.Slot) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO slots (id, owner_id, start_at, end_at, price, reduction, slot_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, slot.ID, slot.OwnerID, slot.Start, slot.End, slot.Price, slot.Reduction, slot.Type)
	return err
}

// GetUnbookedSlotForOwner loads a slot owned by the caller that has no
// booking attached, locking it for the rest of the transaction.
func (r *Repository) GetUnbookedSlotForOwner(ctx context.Context, tx pgx.Tx, slotID, ownerID uuid.UUID) (domain.Slot, error) {
	return scanSlot(tx.QueryRow(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE id = $1 AND owner_id = $2
			AND NOT EXISTS (SELECT 1 FROM bookings WHERE slot_id = slots.id)
		FOR UPDATE
	`, slotID, ownerID))
}

func (r *Repository) UpdateSlot(ctx context.Context, tx pgx.Tx, slot domain.Slot) error {
	result, err := tx.Exec(ctx, `
		UPDATE slots SET start_at = $2, end_at = $3, price = $4, reduction = $5, slot_type = $6
		WHERE id = $1
	`, slot.ID, slot.Start, slot.End, slot.Price, slot.Reduction, slot.Type)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteSlot removes an unbooked, not yet started slot owned by the caller.
func (r *Repository) DeleteSlot(ctx context.Context, tx pgx.Tx, slotID, ownerID uuid.UUID, now time.Time) error {
	slot, err := scanSlot(tx.QueryRow(ctx, `
		SELECT `+slotColumns+` FROM slots WHERE id = $1 AND owner_id = $2 FOR UPDATE
	`, slotID, ownerID))
	if err != nil {
		return err
	}
	if !slot.Start.After(now) {
		return domain.ErrConflict
	}

	var booked bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM bookings WHERE slot_id = $1)
	`, slotID).Scan(&booked)
	if err != nil {
		return err
	}
	if booked {
		return domain.ErrConflict
	}

	_, err = tx.Exec(ctx, `DELETE FROM slots WHERE id = $1`, slotID)
	return err
}

func (r *Repository) FindSlotsByOwner(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]domain.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE owner_id = $1 AND start_at >= $2 AND start_at < $3
		ORDER BY start_at
	`, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// FindAvailableOrOwnedByConsumer returns slots that are either unbooked and
// in the future, or booked by the given consumer.
func (r *Repository) FindAvailableOrOwnedByConsumer(ctx context.Context, consumerID uuid.UUID, from, to time.Time, now time.Time) ([]domain.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.owner_id, s.start_at, s.end_at, s.price, s.reduction, s.slot_type
		FROM slots s
		LEFT JOIN bookings b ON b.slot_id = s.id
		WHERE s.start_at >= $2 AND s.start_at < $3
			AND ((b.id IS NULL AND s.start_at > $4) OR b.consumer_id = $1)
		ORDER BY s.start_at
	`, consumerID, from, to, now)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// GetBookableSlot loads a future, unbooked slot and locks it. A slot that is
// missing, already started or already booked comes back as ErrNotFound; the
// cases are deliberately not distinguished.
func (r *Repository) GetBookableSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, now time.Time) (domain.Slot, error) {
	return scanSlot(tx.QueryRow(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE id = $1 AND start_at > $2
			AND NOT EXISTS (SELECT 1 FROM bookings WHERE slot_id = slots.id)
		FOR UPDATE
	`, slotID, now))
}

func (r *Repository) SlotsForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]domain.Slot, error) {
	q := `
		SELECT s.id, s.owner_id, s.start_at, s.end_at, s.price, s.reduction, s.slot_type
		FROM slots s JOIN bookings b ON b.slot_id = s.id
		WHERE b.order_id = $1
		ORDER BY s.start_at
	`
	var (
		rows pgx.Rows
		err  error
	)
	if tx != nil {
		rows, err = tx.Query(ctx, q, orderID)
	} else {
		rows, err = r.pool.Query(ctx, q, orderID)
	}
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}
