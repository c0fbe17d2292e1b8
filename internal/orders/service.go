package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
)

const txAttempts = 3

type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	WithTxRetry(ctx context.Context, attempts int, fn func(tx pgx.Tx) error) error
	GetPendingOrderForConsumer(ctx context.Context, tx pgx.Tx, consumerID uuid.UUID) (domain.Order, error)
	CountOrdersCreatedBetween(ctx context.Context, tx pgx.Tx, from, to time.Time) (int, error)
	CurrentTaxRate(ctx context.Context, tx pgx.Tx, at time.Time) (float64, error)
	CreateOrder(ctx context.Context, tx pgx.Tx, o domain.Order) error
	GetOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status string, paymentIntentID *string, now time.Time) (bool, error)
	SlotsForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]domain.Slot, error)
	CountBookingsForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter, consumerID *uuid.UUID) (int, []domain.Order, error)
	InsertTaxRate(ctx context.Context, rate domain.TaxRate) error
}

// Service aggregates bookings into the consumer's single pending order and
// owns order status transitions.
type Service struct {
	store  Store
	logger observability.Logger
	prefix string
}

func NewService(store Store, logger observability.Logger, numberPrefix string) *Service {
	return &Service{store: store, logger: logger, prefix: numberPrefix}
}

// GetOrCreateCurrentOrder finds the consumer's pending order or creates one.
// Runs serializable with retry; the partial unique index on pending orders
// is the backstop against concurrent creation.
func (s *Service) GetOrCreateCurrentOrder(ctx context.Context, consumerID uuid.UUID) (domain.Order, error) {
	var order domain.Order
	err := s.store.WithTxRetry(ctx, txAttempts, func(tx pgx.Tx) error {
		var err error
		order, err = s.CurrentOrderTx(ctx, tx, consumerID)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// CurrentOrderTx is the find-or-create step, exposed for callers that need
// it inside a larger transaction (booking creation).
func (s *Service) CurrentOrderTx(ctx context.Context, tx pgx.Tx, consumerID uuid.UUID) (domain.Order, error) {
	order, err := s.store.GetPendingOrderForConsumer(ctx, tx, consumerID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	seq, err := s.store.CountOrdersCreatedBetween(ctx, tx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return domain.Order{}, err
	}
	rate, err := s.store.CurrentTaxRate(ctx, tx, now)
	if err != nil {
		return domain.Order{}, err
	}

	order = domain.NewOrder(consumerID, domain.OrderNumber(s.prefix, now, seq+1), rate)
	if err := s.store.CreateOrder(ctx, tx, order); err != nil {
		return domain.Order{}, err
	}
	s.logger.WithField("order_number", order.Number).Info("created pending order")
	return order, nil
}

// UpdateOrderStatus transitions a pending order and stamps the payment time
// on PAID. A false return means the order was already finalized; callers
// treat that as a no-op.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string, paymentIntentID *string) (bool, error) {
	ok, err := s.store.UpdateOrderStatus(ctx, nil, orderID, status, paymentIntentID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if !ok {
		s.logger.WithField("order_id", orderID.String()).Warn("status transition rejected, order already finalized")
	}
	return ok, nil
}

func (s *Service) Order(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return s.store.GetOrder(ctx, nil, orderID)
}

func (s *Service) OrderTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (domain.Order, error) {
	return s.store.GetOrder(ctx, tx, orderID)
}

// Total computes the order total from its bookings' slots and the tax rate
// captured at order creation.
func (s *Service) Total(ctx context.Context, orderID uuid.UUID) (float64, error) {
	order, err := s.store.GetOrder(ctx, nil, orderID)
	if err != nil {
		return 0, err
	}
	slots, err := s.store.SlotsForOrder(ctx, nil, orderID)
	if err != nil {
		return 0, err
	}
	return order.Total(slots), nil
}

func (s *Service) BookingCount(ctx context.Context, orderID uuid.UUID) (int, error) {
	return s.store.CountBookingsForOrder(ctx, nil, orderID)
}

func (s *Service) ListForConsumer(ctx context.Context, filter domain.OrderFilter, consumerID uuid.UUID) (int, []domain.Order, error) {
	return s.store.ListOrders(ctx, filter, &consumerID)
}

func (s *Service) ListForOwner(ctx context.Context, filter domain.OrderFilter) (int, []domain.Order, error) {
	return s.store.ListOrders(ctx, filter, nil)
}

// SetTaxRate appends a new versioned rate. Orders already created keep the
// rate captured at their creation time.
func (s *Service) SetTaxRate(ctx context.Context, rate float64, validFrom time.Time) (domain.TaxRate, error) {
	if rate < 0 || rate >= 1 {
		return domain.TaxRate{}, fmt.Errorf("%w: tax rate out of range", domain.ErrInvalidInput)
	}
	tr := domain.TaxRate{ID: uuid.New(), Rate: rate, ValidFrom: validFrom}
	if err := s.store.InsertTaxRate(ctx, tr); err != nil {
		return domain.TaxRate{}, err
	}
	s.logger.WithField("rate", rate).Info("tax rate updated")
	return tr, nil
}
