package crdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
)

func (r *Repository) CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings (id, slot_id, consumer_id, order_id, subject, description, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, b.SlotID, b.ConsumerID, b.OrderID, b.Subject, b.Description, b.Category, b.CreatedAt)
	return err
}

// DeleteBookingBySlot removes the slot's booking regardless of order state
// and returns the removed row.
func (r *Repository) DeleteBookingBySlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := tx.QueryRow(ctx, `
		DELETE FROM bookings WHERE slot_id = $1
		RETURNING id, slot_id, consumer_id, order_id, subject, description, category, created_at
	`, slotID).Scan(&b.ID, &b.SlotID, &b.ConsumerID, &b.OrderID, &b.Subject, &b.Description, &b.Category, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, err
}

func (r *Repository) DeleteBookingBySlotAndConsumer(ctx context.Context, tx pgx.Tx, slotID, consumerID uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := tx.QueryRow(ctx, `
		DELETE FROM bookings WHERE slot_id = $1 AND consumer_id = $2
		RETURNING id, slot_id, consumer_id, order_id, subject, description, category, created_at
	`, slotID, consumerID).Scan(&b.ID, &b.SlotID, &b.ConsumerID, &b.OrderID, &b.Subject, &b.Description, &b.Category, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, err
}

func (r *Repository) DeleteBookingsByOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]domain.Booking, error) {
	rows, err := tx.Query(ctx, `
		DELETE FROM bookings WHERE order_id = $1
		RETURNING id, slot_id, consumer_id, order_id, subject, description, category, created_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.SlotID, &b.ConsumerID, &b.OrderID, &b.Subject, &b.Description, &b.Category, &b.CreatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *Repository) CountBookingsForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error) {
	var n int
	var err error
	q := `SELECT count(*) FROM bookings WHERE order_id = $1`
	if tx != nil {
		err = tx.QueryRow(ctx, q, orderID).Scan(&n)
	} else {
		err = r.pool.QueryRow(ctx, q, orderID).Scan(&n)
	}
	return n, err
}

// ListBookings pages booking rows joined with their slots. consumerID nil
// lists across all consumers (the owner view).
func (r *Repository) ListBookings(ctx context.Context, filter domain.BookingFilter, consumerID *uuid.UUID) (int, []domain.BookingView, error) {
	where := "TRUE"
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if consumerID != nil {
		where += " AND b.consumer_id = " + arg(*consumerID)
	} else if filter.ConsumerID != nil {
		where += " AND b.consumer_id = " + arg(*filter.ConsumerID)
	}
	if filter.From != nil {
		where += " AND s.start_at >= " + arg(*filter.From)
	}
	if filter.To != nil {
		where += " AND s.start_at < " + arg(*filter.To)
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where += fmt.Sprintf(" AND (b.subject ILIKE %s OR b.description ILIKE %s OR b.category ILIKE %s)", p, p, p)
	}

	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM bookings b JOIN slots s ON s.id = b.slot_id WHERE `+where, args...).Scan(&total)
	if err != nil {
		return 0, nil, err
	}

	orderBy := "s.start_at"
	if filter.SortBy == domain.SortByCreatedAt {
		orderBy = "b.created_at"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.slot_id, b.consumer_id, b.order_id, b.subject, b.description, b.category, b.created_at,
			s.start_at, s.end_at, s.price
		FROM bookings b JOIN slots s ON s.id = b.slot_id
		WHERE `+where+`
		ORDER BY `+orderBy+`
		LIMIT `+arg(limit)+` OFFSET `+arg(filter.Offset), args...)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var views []domain.BookingView
	for rows.Next() {
		var v domain.BookingView
		err := rows.Scan(&v.ID, &v.SlotID, &v.ConsumerID, &v.OrderID, &v.Subject, &v.Description, &v.Category, &v.CreatedAt,
			&v.SlotStart, &v.SlotEnd, &v.SlotPrice)
		if err != nil {
			return 0, nil, err
		}
		views = append(views, v)
	}
	return total, views, rows.Err()
}
