package crdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
)

const orderColumns = "id, consumer_id, number, status, tax_rate, created_at, updated_at, paid_at, checkout_session_id, checkout_expires_at, payment_intent_id"

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.ConsumerID, &o.Number, &o.Status, &o.TaxRate, &o.CreatedAt,
		&o.UpdatedAt, &o.PaidAt, &o.CheckoutSessionID, &o.CheckoutExpiresAt, &o.PaymentIntentID)
	if err == pgx.ErrNoRows {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) CreateOrder(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO orders (id, consumer_id, number, status, tax_rate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.ConsumerID, o.Number, o.Status, o.TaxRate, o.CreatedAt)
	return err
}

func (r *Repository) GetOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if tx != nil {
		return scanOrder(tx.QueryRow(ctx, q, orderID))
	}
	return scanOrder(r.pool.QueryRow(ctx, q, orderID))
}

func (r *Repository) GetPendingOrderForConsumer(ctx context.Context, tx pgx.Tx, consumerID uuid.UUID) (domain.Order, error) {
	return scanOrder(tx.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE consumer_id = $1 AND status = 'PENDING'
		FOR UPDATE
	`, consumerID))
}

// CountOrdersCreatedBetween backs the per-day order-number sequence; it must
// run inside the same transaction as the subsequent insert.
func (r *Repository) CountOrdersCreatedBetween(ctx context.Context, tx pgx.Tx, from, to time.Time) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT count(*) FROM orders WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&n)
	return n, err
}

// UpdateOrderStatus transitions a PENDING order and reports whether the
// guarded update matched. Already finalized orders return false, nil.
func (r *Repository) UpdateOrderStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status string, paymentIntentID *string, now time.Time) (bool, error) {
	var paidAt *time.Time
	if status == domain.OrderPaid {
		paidAt = &now
	}
	q := `
		UPDATE orders
		SET status = $2, updated_at = $3, paid_at = COALESCE($4, paid_at), payment_intent_id = COALESCE($5, payment_intent_id)
		WHERE id = $1 AND status = 'PENDING'
	`
	var (
		result pgconn.CommandTag
		err    error
	)
	if tx != nil {
		result, err = tx.Exec(ctx, q, orderID, status, now, paidAt, paymentIntentID)
	} else {
		result, err = r.pool.Exec(ctx, q, orderID, status, now, paidAt, paymentIntentID)
	}
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *Repository) SetCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string, expiresAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders SET checkout_session_id = $2, checkout_expires_at = $3, updated_at = $4
		WHERE id = $1 AND status = 'PENDING'
	`, orderID, sessionID, expiresAt, time.Now().UTC())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// ClearCheckoutSession drops the session fields and returns the affected
// order. Safe to call when no order carries the session. Finalized orders
// are left untouched; a late gateway event must not stamp them.
func (r *Repository) ClearCheckoutSession(ctx context.Context, sessionID string) (domain.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `
		UPDATE orders SET checkout_session_id = NULL, checkout_expires_at = NULL, updated_at = $2
		WHERE checkout_session_id = $1 AND status = 'PENDING'
		RETURNING `+orderColumns, sessionID, time.Now().UTC()))
}

// ClearCheckoutSessionForOrder drops the session fields through the caller's
// transaction, for callers already holding the order row lock.
func (r *Repository) ClearCheckoutSessionForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET checkout_session_id = NULL, checkout_expires_at = NULL, updated_at = $2
		WHERE id = $1 AND status = 'PENDING'
	`, orderID, time.Now().UTC())
	return err
}

// GetStalePendingOrders selects pending orders untouched since the cutoff.
// Orders never updated fall back to their creation time.
func (r *Repository) GetStalePendingOrders(ctx context.Context, cutoff time.Time) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = 'PENDING' AND COALESCE(updated_at, created_at) < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *Repository) ListOrders(ctx context.Context, filter domain.OrderFilter, consumerID *uuid.UUID) (int, []domain.Order, error) {
	where := "TRUE"
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if consumerID != nil {
		where += " AND consumer_id = " + arg(*consumerID)
	}
	if filter.From != nil {
		where += " AND created_at >= " + arg(*filter.From)
	}
	if filter.To != nil {
		where += " AND created_at < " + arg(*filter.To)
	}
	if filter.Status != "" {
		where += " AND status = " + arg(filter.Status)
	}
	if filter.Search != "" {
		where += " AND number ILIKE " + arg("%"+filter.Search+"%")
	}

	var total int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE `+where, args...).Scan(&total)
	if err != nil {
		return 0, nil, err
	}

	orderBy := "created_at DESC"
	if filter.SortBy == domain.SortByPaidAt {
		orderBy = "paid_at DESC NULLS LAST"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE `+where+`
		ORDER BY `+orderBy+`
		LIMIT `+arg(limit)+` OFFSET `+arg(filter.Offset), args...)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return 0, nil, err
		}
		orders = append(orders, o)
	}
	return total, orders, rows.Err()
}
