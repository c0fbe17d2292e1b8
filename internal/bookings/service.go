package bookings

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/notifications"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
)

const slotLockTTL = 30 * time.Second

type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetBookableSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, now time.Time) (domain.Slot, error)
	ClearCheckoutSessionForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error
	CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error
	DeleteBookingBySlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (domain.Booking, error)
	DeleteBookingBySlotAndConsumer(ctx context.Context, tx pgx.Tx, slotID, consumerID uuid.UUID) (domain.Booking, error)
	ListBookings(ctx context.Context, filter domain.BookingFilter, consumerID *uuid.UUID) (int, []domain.BookingView, error)
}

// OrderSource supplies the consumer's pending order inside the booking
// transaction.
type OrderSource interface {
	CurrentOrderTx(ctx context.Context, tx pgx.Tx, consumerID uuid.UUID) (domain.Order, error)
	OrderTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (domain.Order, error)
}

// CheckoutExpirer tears down an outstanding gateway session once the
// order's session fields have been cleared.
type CheckoutExpirer interface {
	ExpireCheckout(ctx context.Context, sessionID string) error
}

type Locker interface {
	SetSlotLock(ctx context.Context, slotID, consumerID string, ttl time.Duration) (bool, error)
	ReleaseSlotLock(ctx context.Context, slotID string) error
}

type Auditor interface {
	LogBooking(ctx context.Context, action string, b domain.Booking) error
}

// Service creates and removes bookings against slots.
type Service struct {
	store    Store
	orders   OrderSource
	checkout CheckoutExpirer
	locker   Locker
	notifier notifications.Port
	auditor  Auditor
	logger   observability.Logger
}

func NewService(store Store, orders OrderSource, checkout CheckoutExpirer, locker Locker, notifier notifications.Port, auditor Auditor, logger observability.Logger) *Service {
	return &Service{
		store:    store,
		orders:   orders,
		checkout: checkout,
		locker:   locker,
		notifier: notifier,
		auditor:  auditor,
		logger:   logger,
	}
}

// BookSlot claims a future, unbooked slot for the consumer and attaches the
// booking to their pending order. Returns false on any booking conflict;
// the unique constraint on bookings.slot_id is the authoritative guard.
func (s *Service) BookSlot(ctx context.Context, slotID, consumerID uuid.UUID, details domain.BookingDetails) (bool, error) {
	if s.locker != nil {
		ok, err := s.locker.SetSlotLock(ctx, slotID.String(), consumerID.String(), slotLockTTL)
		if err != nil {
			return false, err
		}
		if !ok {
			observability.BookingConflicts.Inc()
			return false, nil
		}
	}

	var booking domain.Booking
	var staleSession string
	err := s.store.WithTx(ctx, func(tx pgx.Tx) error {
		slot, err := s.store.GetBookableSlot(ctx, tx, slotID, time.Now().UTC())
		if err != nil {
			return err
		}

		order, err := s.orders.CurrentOrderTx(ctx, tx, consumerID)
		if err != nil {
			return err
		}
		if order.HasOpenCheckout() {
			// The session fields are cleared through this transaction; the
			// order row is locked until commit, so any out-of-band write to
			// it would wait on the lock. The gateway call runs after commit.
			staleSession = *order.CheckoutSessionID
			if err := s.store.ClearCheckoutSessionForOrder(ctx, tx, order.ID); err != nil {
				return err
			}
		}

		booking = domain.NewBooking(slot.ID, consumerID, order.ID, details)
		if err := s.store.CreateBooking(ctx, tx, booking); err != nil {
			return err
		}

		ctxData := map[string]string{
			"booking_id": booking.ID.String(),
			"slot_id":    slot.ID.String(),
			"slot_start": slot.Start.Format(time.RFC3339),
			"order_id":   order.ID.String(),
		}
		if err := s.notifier.Notify(ctx, tx, consumerID, slot.OwnerID, notifications.EventBookingAccepted, ctxData); err != nil {
			return err
		}
		return s.notifier.Notify(ctx, tx, slot.OwnerID, consumerID, notifications.EventBookingCreated, ctxData)
	})
	if err != nil {
		s.releaseLock(ctx, slotID)
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrSerializationFailure) {
			observability.BookingConflicts.Inc()
			s.logger.WithField("slot_id", slotID.String()).Info("booking rejected", err)
			return false, nil
		}
		return false, err
	}

	if staleSession != "" {
		// Best effort: the session is already detached from the order, and
		// the gateway expires unredeemed sessions on its own schedule.
		if err := s.checkout.ExpireCheckout(ctx, staleSession); err != nil {
			s.logger.WithField("session_id", staleSession).Warn("failed to expire stale checkout session", err)
		}
	}

	observability.BookingsCreated.Inc()
	if s.auditor != nil {
		_ = s.auditor.LogBooking(ctx, "booking.created", booking)
	}
	return true, nil
}

// CancelByOwner removes the slot's booking unconditionally, whatever the
// order status. A removal from a paid order leaves the stored total stale;
// the drift is surfaced through the audit trail.
func (s *Service) CancelByOwner(ctx context.Context, slotID uuid.UUID) error {
	var booking domain.Booking
	var paidOrder *domain.Order
	err := s.store.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		booking, err = s.store.DeleteBookingBySlot(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if booking.OrderID != nil {
			order, err := s.orders.OrderTx(ctx, tx, *booking.OrderID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if err == nil && order.Status == domain.OrderPaid {
				paidOrder = &order
			}
		}
		return s.notifier.Notify(ctx, tx, booking.ConsumerID, uuid.Nil, notifications.EventBookingCancelled, map[string]string{
			"booking_id": booking.ID.String(),
			"slot_id":    slotID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.releaseLock(ctx, slotID)
	if s.auditor != nil {
		_ = s.auditor.LogBooking(ctx, "booking.cancelled_by_owner", booking)
		if paidOrder != nil {
			_ = s.auditor.LogBooking(ctx, "order.total_drift", booking)
		}
	}
	return nil
}

// CancelByConsumer removes the caller's own booking on the slot.
func (s *Service) CancelByConsumer(ctx context.Context, slotID, consumerID uuid.UUID) error {
	var booking domain.Booking
	err := s.store.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		booking, err = s.store.DeleteBookingBySlotAndConsumer(ctx, tx, slotID, consumerID)
		if err != nil {
			return err
		}
		return s.notifier.Notify(ctx, tx, consumerID, uuid.Nil, notifications.EventBookingCancelled, map[string]string{
			"booking_id": booking.ID.String(),
			"slot_id":    slotID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.releaseLock(ctx, slotID)
	if s.auditor != nil {
		_ = s.auditor.LogBooking(ctx, "booking.cancelled_by_consumer", booking)
	}
	return nil
}

func (s *Service) ListForOwner(ctx context.Context, filter domain.BookingFilter) (int, []domain.BookingView, error) {
	return s.store.ListBookings(ctx, filter, nil)
}

func (s *Service) ListForConsumer(ctx context.Context, filter domain.BookingFilter, consumerID uuid.UUID) (int, []domain.BookingView, error) {
	return s.store.ListBookings(ctx, filter, &consumerID)
}

func (s *Service) releaseLock(ctx context.Context, slotID uuid.UUID) {
	if s.locker == nil {
		return
	}
	if err := s.locker.ReleaseSlotLock(ctx, slotID.String()); err != nil {
		s.logger.Warn("failed to release slot lock", err)
	}
}
