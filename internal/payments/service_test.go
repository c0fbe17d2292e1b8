package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/gateway"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
)

type fakeGateway struct {
	sessions []gateway.SessionRequest
	expired  []string
}

func (f *fakeGateway) CreateSession(ctx context.Context, req gateway.SessionRequest) (gateway.Session, error) {
	f.sessions = append(f.sessions, req)
	return gateway.Session{ID: "cs_test", URL: "https://pay.example/cs_test", ExpiresAt: time.Now().Add(30 * time.Minute)}, nil
}

func (f *fakeGateway) ExpireSession(ctx context.Context, sessionID string) error {
	f.expired = append(f.expired, sessionID)
	return nil
}

func (f *fakeGateway) VerifySignature(payload []byte, signature string) error {
	if signature != "good" {
		return fmt.Errorf("%w: webhook signature mismatch", domain.ErrGateway)
	}
	return nil
}

type fakeOrders struct {
	order        domain.Order
	total        float64
	bookingCount int
	updates      []string
	updateResult bool
}

func (f *fakeOrders) Order(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	if orderID != f.order.ID {
		return domain.Order{}, domain.ErrNotFound
	}
	return f.order, nil
}

func (f *fakeOrders) Total(ctx context.Context, orderID uuid.UUID) (float64, error) {
	return f.total, nil
}

func (f *fakeOrders) BookingCount(ctx context.Context, orderID uuid.UUID) (int, error) {
	return f.bookingCount, nil
}

func (f *fakeOrders) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string, paymentIntentID *string) (bool, error) {
	f.updates = append(f.updates, status)
	return f.updateResult, nil
}

type fakeSessionStore struct {
	set     map[uuid.UUID]string
	cleared []string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{set: map[uuid.UUID]string{}}
}

func (f *fakeSessionStore) SetCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string, expiresAt time.Time) error {
	f.set[orderID] = sessionID
	return nil
}

func (f *fakeSessionStore) ClearCheckoutSession(ctx context.Context, sessionID string) (domain.Order, error) {
	f.cleared = append(f.cleared, sessionID)
	return domain.Order{}, nil
}

type fakeDedup struct {
	seen map[string]bool
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{seen: map[string]bool{}}
}

func (f *fakeDedup) Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

func (f *fakeDedup) Release(ctx context.Context, eventID string) error {
	delete(f.seen, eventID)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, tx pgx.Tx, recipientID, senderID uuid.UUID, eventType string, data map[string]string) error {
	return nil
}

func pendingOrder(consumerID uuid.UUID) domain.Order {
	return domain.NewOrder(consumerID, "ABO-20250101-00001", 0.19)
}

func newTestService(orders *fakeOrders, gw *fakeGateway, store *fakeSessionStore, dedup *fakeDedup) *Service {
	return NewService(store, orders, gw, dedup, noopNotifier{}, nil, observability.NewLogger())
}

func paidEvent(orderID uuid.UUID, eventID string) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"id":   eventID,
		"type": gateway.EventPaymentSucceeded,
		"data": map[string]interface{}{
			"session_id":        "cs_test",
			"payment_intent_id": "pi_123",
			"metadata":          map[string]string{"order_id": orderID.String()},
		},
	})
	return payload
}

func TestValidateForCheckout(t *testing.T) {
	ctx := context.Background()
	consumerID := uuid.New()
	orders := &fakeOrders{order: pendingOrder(consumerID), total: 119, bookingCount: 1}
	svc := newTestService(orders, &fakeGateway{}, newFakeSessionStore(), newFakeDedup())

	if _, err := svc.ValidateForCheckout(ctx, orders.order.ID, consumerID); err != nil {
		t.Errorf("payable order rejected: %v", err)
	}

	if _, err := svc.ValidateForCheckout(ctx, orders.order.ID, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign consumer: expected ErrNotFound, got %v", err)
	}

	orders.bookingCount = 0
	if _, err := svc.ValidateForCheckout(ctx, orders.order.ID, consumerID); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("empty order: expected ErrConflict, got %v", err)
	}
	orders.bookingCount = 1

	orders.total = 0
	if _, err := svc.ValidateForCheckout(ctx, orders.order.ID, consumerID); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("zero total: expected ErrConflict, got %v", err)
	}
	orders.total = 119

	orders.order.Status = domain.OrderCancelled
	if _, err := svc.ValidateForCheckout(ctx, orders.order.ID, consumerID); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("finalized order: expected ErrConflict, got %v", err)
	}
}

func TestCreateCheckout(t *testing.T) {
	ctx := context.Background()
	consumerID := uuid.New()
	orders := &fakeOrders{order: pendingOrder(consumerID), total: 119, bookingCount: 2}
	gw := &fakeGateway{}
	store := newFakeSessionStore()
	svc := newTestService(orders, gw, store, newFakeDedup())

	session, err := svc.CreateCheckout(ctx, orders.order.ID, consumerID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if session.ID != "cs_test" {
		t.Errorf("unexpected session id %s", session.ID)
	}
	if store.set[orders.order.ID] != "cs_test" {
		t.Error("session not persisted on order")
	}
	if len(gw.sessions) != 1 {
		t.Fatalf("expected one gateway session, got %d", len(gw.sessions))
	}
	if gw.sessions[0].Metadata["order_id"] != orders.order.ID.String() {
		t.Error("order id missing from session metadata")
	}
}

func TestHandleWebhookBadSignature(t *testing.T) {
	ctx := context.Background()
	orders := &fakeOrders{order: pendingOrder(uuid.New()), updateResult: true}
	svc := newTestService(orders, &fakeGateway{}, newFakeSessionStore(), newFakeDedup())

	_, err := svc.HandleWebhook(ctx, paidEvent(orders.order.ID, "evt_1"), "bad")
	if !errors.Is(err, domain.ErrGateway) {
		t.Errorf("expected ErrGateway, got %v", err)
	}
	if len(orders.updates) != 0 {
		t.Error("unverified webhook must have no side effects")
	}
}

func TestHandleWebhookPaid(t *testing.T) {
	ctx := context.Background()
	orders := &fakeOrders{order: pendingOrder(uuid.New()), updateResult: true}
	svc := newTestService(orders, &fakeGateway{}, newFakeSessionStore(), newFakeDedup())

	applied, err := svc.HandleWebhook(ctx, paidEvent(orders.order.ID, "evt_1"), "good")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !applied {
		t.Error("expected event to apply")
	}
	if len(orders.updates) != 1 || orders.updates[0] != domain.OrderPaid {
		t.Errorf("expected one PAID transition, got %v", orders.updates)
	}
}

func TestHandleWebhookDuplicate(t *testing.T) {
	ctx := context.Background()
	orders := &fakeOrders{order: pendingOrder(uuid.New()), updateResult: true}
	svc := newTestService(orders, &fakeGateway{}, newFakeSessionStore(), newFakeDedup())

	payload := paidEvent(orders.order.ID, "evt_dup")
	if _, err := svc.HandleWebhook(ctx, payload, "good"); err != nil {
		t.Fatal(err)
	}
	applied, err := svc.HandleWebhook(ctx, payload, "good")
	if err != nil {
		t.Fatalf("replay must not error: %v", err)
	}
	if applied {
		t.Error("replayed event must be a no-op")
	}
	if len(orders.updates) != 1 {
		t.Errorf("expected exactly one transition, got %d", len(orders.updates))
	}
}

func TestHandleWebhookAfterCancellation(t *testing.T) {
	ctx := context.Background()
	orders := &fakeOrders{order: pendingOrder(uuid.New()), updateResult: false}
	orders.order.Status = domain.OrderCancelled
	svc := newTestService(orders, &fakeGateway{}, newFakeSessionStore(), newFakeDedup())

	applied, err := svc.HandleWebhook(ctx, paidEvent(orders.order.ID, "evt_late"), "good")
	if err != nil {
		t.Fatalf("late webhook must not error: %v", err)
	}
	if applied {
		t.Error("late webhook must be a no-op")
	}
}

func TestHandleWebhookSessionExpired(t *testing.T) {
	ctx := context.Background()
	orders := &fakeOrders{order: pendingOrder(uuid.New())}
	store := newFakeSessionStore()
	svc := newTestService(orders, &fakeGateway{}, store, newFakeDedup())

	payload, _ := json.Marshal(map[string]interface{}{
		"id":   "evt_exp",
		"type": gateway.EventSessionExpired,
		"data": map[string]interface{}{"session_id": "cs_gone"},
	})
	applied, err := svc.HandleWebhook(ctx, payload, "good")
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Error("expired session event should apply")
	}
	if len(store.cleared) != 1 || store.cleared[0] != "cs_gone" {
		t.Errorf("expected session cleared, got %v", store.cleared)
	}
	if len(orders.updates) != 0 {
		t.Error("expired session must not touch order status")
	}
}

func TestExpireCheckoutIdempotent(t *testing.T) {
	ctx := context.Background()
	orders := &fakeOrders{order: pendingOrder(uuid.New())}
	gw := &fakeGateway{}
	store := newFakeSessionStore()
	svc := newTestService(orders, gw, store, newFakeDedup())

	if err := svc.ExpireCheckout(ctx, "cs_a"); err != nil {
		t.Fatalf("first expire failed: %v", err)
	}
	if err := svc.ExpireCheckout(ctx, "cs_a"); err != nil {
		t.Fatalf("second expire must be safe: %v", err)
	}
	if len(gw.expired) != 2 {
		t.Errorf("expected gateway expire called twice, got %d", len(gw.expired))
	}
}
