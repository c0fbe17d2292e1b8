package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/gateway"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/notifications"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
)

const (
	checkoutTTL = 30 * time.Minute
	dedupTTL    = 24 * time.Hour
)

type Store interface {
	SetCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string, expiresAt time.Time) error
	ClearCheckoutSession(ctx context.Context, sessionID string) (domain.Order, error)
}

// Orders is the aggregator surface the reconciler needs.
type Orders interface {
	Order(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
	Total(ctx context.Context, orderID uuid.UUID) (float64, error)
	BookingCount(ctx context.Context, orderID uuid.UUID) (int, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string, paymentIntentID *string) (bool, error)
}

// Gateway is the external payment-gateway client.
type Gateway interface {
	CreateSession(ctx context.Context, req gateway.SessionRequest) (gateway.Session, error)
	ExpireSession(ctx context.Context, sessionID string) error
	VerifySignature(payload []byte, signature string) error
}

// Dedup claims webhook event ids so at-least-once delivery is applied once.
type Dedup interface {
	Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Auditor interface {
	LogOrder(ctx context.Context, action string, o domain.Order) error
}

// Service validates orders for checkout and reconciles asynchronous gateway
// outcomes into order status.
type Service struct {
	store    Store
	orders   Orders
	gw       Gateway
	dedup    Dedup
	notifier notifications.Port
	auditor  Auditor
	logger   observability.Logger
	currency string
}

func NewService(store Store, orders Orders, gw Gateway, dedup Dedup, notifier notifications.Port, auditor Auditor, logger observability.Logger) *Service {
	return &Service{
		store:    store,
		orders:   orders,
		gw:       gw,
		dedup:    dedup,
		notifier: notifier,
		auditor:  auditor,
		logger:   logger,
		currency: "EUR",
	}
}

// ValidateForCheckout confirms the order is payable by the caller: pending,
// owned, with at least one booking and a positive total.
func (s *Service) ValidateForCheckout(ctx context.Context, orderID, consumerID uuid.UUID) (domain.Order, error) {
	order, err := s.orders.Order(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.ConsumerID != consumerID {
		return domain.Order{}, domain.ErrNotFound
	}
	if order.Status != domain.OrderPending {
		return domain.Order{}, fmt.Errorf("%w: order is not pending", domain.ErrConflict)
	}
	count, err := s.orders.BookingCount(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if count == 0 {
		return domain.Order{}, fmt.Errorf("%w: order has no bookings", domain.ErrConflict)
	}
	total, err := s.orders.Total(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if total <= 0 {
		return domain.Order{}, fmt.Errorf("%w: order total is zero", domain.ErrConflict)
	}
	return order, nil
}

// CreateCheckout opens a gateway session for the order and records the
// session on it. An older open session is expired first.
func (s *Service) CreateCheckout(ctx context.Context, orderID, consumerID uuid.UUID) (gateway.Session, error) {
	order, err := s.ValidateForCheckout(ctx, orderID, consumerID)
	if err != nil {
		return gateway.Session{}, err
	}
	if order.HasOpenCheckout() {
		if err := s.ExpireCheckout(ctx, *order.CheckoutSessionID); err != nil {
			return gateway.Session{}, err
		}
	}

	total, err := s.orders.Total(ctx, orderID)
	if err != nil {
		return gateway.Session{}, err
	}

	session, err := s.gw.CreateSession(ctx, gateway.SessionRequest{
		Amount:    total,
		Currency:  s.currency,
		ExpiresIn: int(checkoutTTL.Seconds()),
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.Number,
			"consumer_id":  order.ConsumerID.String(),
		},
		Description: "order " + order.Number,
	})
	if err != nil {
		return gateway.Session{}, err
	}

	if err := s.store.SetCheckoutSession(ctx, orderID, session.ID, session.ExpiresAt); err != nil {
		// The order was finalized between validation and persist; close the
		// orphaned session at the gateway.
		_ = s.gw.ExpireSession(ctx, session.ID)
		return gateway.Session{}, err
	}
	return session, nil
}

// HandleWebhook verifies and applies a gateway event. The bool result says
// whether the event changed anything; replays and late events are no-ops.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (bool, error) {
	if err := s.gw.VerifySignature(payload, signature); err != nil {
		observability.WebhooksProcessed.WithLabelValues("bad_signature").Inc()
		return false, err
	}
	event, err := gateway.ParseEvent(payload)
	if err != nil {
		observability.WebhooksProcessed.WithLabelValues("malformed").Inc()
		return false, err
	}

	fresh, err := s.dedup.Claim(ctx, event.ID, dedupTTL)
	if err != nil {
		return false, err
	}
	if !fresh {
		observability.WebhooksProcessed.WithLabelValues("duplicate").Inc()
		s.logger.WithField("event_id", event.ID).Info("duplicate webhook ignored")
		return false, nil
	}

	applied, err := s.applyEvent(ctx, event)
	if err != nil {
		// Free the claim so gateway redelivery can retry.
		_ = s.dedup.Release(ctx, event.ID)
		return false, err
	}
	return applied, nil
}

func (s *Service) applyEvent(ctx context.Context, event gateway.Event) (bool, error) {
	switch event.Type {
	case gateway.EventPaymentSucceeded:
		orderID, err := uuid.Parse(event.Data.Metadata["order_id"])
		if err != nil {
			return false, fmt.Errorf("%w: webhook metadata missing order_id", domain.ErrInvalidInput)
		}
		ref := event.Data.PaymentIntentID
		ok, err := s.orders.UpdateOrderStatus(ctx, orderID, domain.OrderPaid, &ref)
		if err != nil {
			return false, err
		}
		if !ok {
			// Lost the race against the expiry scheduler; the payment
			// arrived for an order that is no longer pending.
			observability.WebhooksProcessed.WithLabelValues("late").Inc()
			s.logger.WithField("order_id", orderID.String()).Warn("payment webhook for finalized order rejected")
			return false, nil
		}
		observability.WebhooksProcessed.WithLabelValues("paid").Inc()
		order, err := s.orders.Order(ctx, orderID)
		if err == nil {
			_ = s.notifier.Notify(ctx, nil, order.ConsumerID, uuid.Nil, notifications.EventOrderPaid, map[string]string{
				"order_id":     order.ID.String(),
				"order_number": order.Number,
			})
			if s.auditor != nil {
				_ = s.auditor.LogOrder(ctx, "order.paid", order)
			}
		}
		return true, nil

	case gateway.EventPaymentFailed, gateway.EventSessionExpired:
		// The order stays pending and re-bookable with no open session.
		_, err := s.store.ClearCheckoutSession(ctx, event.Data.SessionID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
		observability.WebhooksProcessed.WithLabelValues("session_closed").Inc()
		return true, nil

	default:
		s.logger.WithField("event_type", event.Type).Debug("unhandled webhook event type")
		return false, nil
	}
}

// ExpireCheckout closes the session at the gateway and clears the order's
// session fields. Safe when the session is already closed or unknown.
func (s *Service) ExpireCheckout(ctx context.Context, sessionID string) error {
	if err := s.gw.ExpireSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.store.ClearCheckoutSession(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
