package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/notifications"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
	"golang.org/x/sync/errgroup"
)

const maxRetries = 3

type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetStalePendingOrders(ctx context.Context, cutoff time.Time) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status string, paymentIntentID *string, now time.Time) (bool, error)
	DeleteBookingsByOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]domain.Booking, error)
}

type CheckoutExpirer interface {
	ExpireCheckout(ctx context.Context, sessionID string) error
}

// Worker cancels pending orders that sat unpaid past the threshold and
// frees their slots. It only ever touches orders still matching the
// stale-pending predicate, so overlapping runs are safe.
type Worker struct {
	store     Store
	checkout  CheckoutExpirer
	notifier  notifications.Port
	logger    observability.Logger
	threshold time.Duration
}

func NewWorker(store Store, checkout CheckoutExpirer, notifier notifications.Port, logger observability.Logger, threshold time.Duration) *Worker {
	return &Worker{
		store:     store,
		checkout:  checkout,
		notifier:  notifier,
		logger:    logger,
		threshold: threshold,
	}
}

func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.Sweep(ctx, now.UTC())
		}
	}
}

// Sweep runs one pass over stale pending orders. Orders are independent, so
// cancellations run concurrently with a small bound.
func (w *Worker) Sweep(ctx context.Context, now time.Time) {
	orders, err := w.store.GetStalePendingOrders(ctx, now.Add(-w.threshold))
	if err != nil {
		w.logger.Error("failed to scan stale orders", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, order := range orders {
		order := order
		g.Go(func() error {
			if err := w.cancelWithRetry(gctx, order, now); err != nil {
				w.logger.WithField("order_id", order.ID.String()).Error("failed to expire order after retries", err)
			}
			return nil
		})
	}
	g.Wait()
}

func (w *Worker) cancelWithRetry(ctx context.Context, order domain.Order, now time.Time) error {
	for i := 0; i < maxRetries; i++ {
		err := w.cancel(ctx, order, now)
		if err == nil {
			return nil
		}
		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed after %d retries", maxRetries)
}

func (w *Worker) cancel(ctx context.Context, order domain.Order, now time.Time) error {
	if order.HasOpenCheckout() {
		if err := w.checkout.ExpireCheckout(ctx, *order.CheckoutSessionID); err != nil {
			return err
		}
	}

	var cancelled bool
	err := w.store.WithTx(ctx, func(tx pgx.Tx) error {
		ok, err := w.store.UpdateOrderStatus(ctx, tx, order.ID, domain.OrderCancelled, nil, now)
		if err != nil {
			return err
		}
		if !ok {
			// Paid (or already cancelled) since the scan; leave it alone.
			return nil
		}
		cancelled = true
		if _, err := w.store.DeleteBookingsByOrder(ctx, tx, order.ID); err != nil {
			return err
		}
		return w.notifier.Notify(ctx, tx, order.ConsumerID, uuid.Nil, notifications.EventOrderExpired, map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.Number,
		})
	})
	if err != nil {
		return err
	}
	if cancelled {
		observability.OrdersExpired.Inc()
		w.logger.WithField("order_number", order.Number).Info("expired pending order")
	}
	return nil
}
