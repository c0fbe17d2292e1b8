package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
)

type fakeStore struct {
	slots   map[uuid.UUID]domain.Slot
	booked  map[uuid.UUID]domain.Booking
	cleared []uuid.UUID

	inTx bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots:  map[uuid.UUID]domain.Slot{},
		booked: map[uuid.UUID]domain.Booking{},
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	f.inTx = true
	defer func() { f.inTx = false }()
	return fn(nil)
}

func (f *fakeStore) ClearCheckoutSessionForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	f.cleared = append(f.cleared, orderID)
	return nil
}

func (f *fakeStore) GetBookableSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, now time.Time) (domain.Slot, error) {
	slot, ok := f.slots[slotID]
	if !ok || !slot.Start.After(now) {
		return domain.Slot{}, domain.ErrNotFound
	}
	if _, taken := f.booked[slotID]; taken {
		return domain.Slot{}, domain.ErrNotFound
	}
	return slot, nil
}

func (f *fakeStore) CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error {
	if _, taken := f.booked[b.SlotID]; taken {
		return domain.ErrConflict
	}
	f.booked[b.SlotID] = b
	return nil
}

func (f *fakeStore) DeleteBookingBySlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (domain.Booking, error) {
	b, ok := f.booked[slotID]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	delete(f.booked, slotID)
	return b, nil
}

func (f *fakeStore) DeleteBookingBySlotAndConsumer(ctx context.Context, tx pgx.Tx, slotID, consumerID uuid.UUID) (domain.Booking, error) {
	b, ok := f.booked[slotID]
	if !ok || b.ConsumerID != consumerID {
		return domain.Booking{}, domain.ErrNotFound
	}
	delete(f.booked, slotID)
	return b, nil
}

func (f *fakeStore) ListBookings(ctx context.Context, filter domain.BookingFilter, consumerID *uuid.UUID) (int, []domain.BookingView, error) {
	var views []domain.BookingView
	for _, b := range f.booked {
		if consumerID != nil && b.ConsumerID != *consumerID {
			continue
		}
		views = append(views, domain.BookingView{Booking: b})
	}
	return len(views), views, nil
}

type fakeOrderSource struct {
	order domain.Order
}

func (f *fakeOrderSource) CurrentOrderTx(ctx context.Context, tx pgx.Tx, consumerID uuid.UUID) (domain.Order, error) {
	return f.order, nil
}

func (f *fakeOrderSource) OrderTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (domain.Order, error) {
	if orderID != f.order.ID {
		return domain.Order{}, domain.ErrNotFound
	}
	return f.order, nil
}

type fakeCheckout struct {
	store      *fakeStore
	expired    []string
	calledInTx bool
}

func (f *fakeCheckout) ExpireCheckout(ctx context.Context, sessionID string) error {
	f.expired = append(f.expired, sessionID)
	if f.store != nil && f.store.inTx {
		f.calledInTx = true
	}
	return nil
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Notify(ctx context.Context, tx pgx.Tx, recipientID, senderID uuid.UUID, eventType string, data map[string]string) error {
	f.events = append(f.events, eventType)
	return nil
}

func newTestService(store *fakeStore, orders *fakeOrderSource, checkout *fakeCheckout, notifier *fakeNotifier) *Service {
	return NewService(store, orders, checkout, nil, notifier, nil, observability.NewLogger())
}

func futureSlot(ownerID uuid.UUID) domain.Slot {
	start := time.Now().Add(24 * time.Hour)
	return domain.Slot{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Start:   start,
		End:     start.Add(time.Hour),
		Price:   60,
	}
}

func TestBookSlot(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	ownerID := uuid.New()
	consumerID := uuid.New()
	slot := futureSlot(ownerID)
	store.slots[slot.ID] = slot

	orderSrc := &fakeOrderSource{order: domain.NewOrder(consumerID, "ABO-20250101-00001", 0.19)}
	notifier := &fakeNotifier{}
	svc := newTestService(store, orderSrc, &fakeCheckout{}, notifier)

	booked, err := svc.BookSlot(ctx, slot.ID, consumerID, domain.BookingDetails{Subject: "checkup"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !booked {
		t.Fatal("expected booking to succeed")
	}

	b, ok := store.booked[slot.ID]
	if !ok {
		t.Fatal("booking not persisted")
	}
	if b.OrderID == nil || *b.OrderID != orderSrc.order.ID {
		t.Error("booking not attached to pending order")
	}
	if len(notifier.events) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(notifier.events))
	}
}

func TestBookSlotAlreadyBooked(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	slot := futureSlot(uuid.New())
	store.slots[slot.ID] = slot

	orderSrc := &fakeOrderSource{order: domain.NewOrder(uuid.New(), "ABO-20250101-00001", 0)}
	svc := newTestService(store, orderSrc, &fakeCheckout{}, &fakeNotifier{})

	booked, err := svc.BookSlot(ctx, slot.ID, uuid.New(), domain.BookingDetails{})
	if err != nil || !booked {
		t.Fatalf("first booking should succeed, got booked=%v err=%v", booked, err)
	}

	booked, err = svc.BookSlot(ctx, slot.ID, uuid.New(), domain.BookingDetails{})
	if err != nil {
		t.Fatalf("conflict must not surface as error, got %v", err)
	}
	if booked {
		t.Error("second booking on the same slot must fail")
	}
	if len(store.booked) != 1 {
		t.Errorf("expected exactly one booking, got %d", len(store.booked))
	}
}

func TestBookSlotPastStart(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	slot := futureSlot(uuid.New())
	slot.Start = time.Now().Add(-time.Hour)
	slot.End = slot.Start.Add(time.Hour)
	store.slots[slot.ID] = slot

	svc := newTestService(store, &fakeOrderSource{}, &fakeCheckout{}, &fakeNotifier{})

	booked, err := svc.BookSlot(ctx, slot.ID, uuid.New(), domain.BookingDetails{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if booked {
		t.Error("booking a started slot must fail")
	}
}

func TestBookSlotExpiresStaleCheckout(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	slot := futureSlot(uuid.New())
	store.slots[slot.ID] = slot

	consumerID := uuid.New()
	order := domain.NewOrder(consumerID, "ABO-20250101-00002", 0)
	session := "cs_stale"
	order.CheckoutSessionID = &session
	orderSrc := &fakeOrderSource{order: order}
	checkout := &fakeCheckout{store: store}
	svc := newTestService(store, orderSrc, checkout, &fakeNotifier{})

	booked, err := svc.BookSlot(ctx, slot.ID, consumerID, domain.BookingDetails{})
	if err != nil || !booked {
		t.Fatalf("expected success, got booked=%v err=%v", booked, err)
	}
	if len(checkout.expired) != 1 || checkout.expired[0] != "cs_stale" {
		t.Errorf("expected stale session to be expired, got %v", checkout.expired)
	}
	// The booking transaction holds a row lock on the pending order, and the
	// expirer writes to that same row through the pool. Calling it while the
	// transaction is open would wait on the lock until the context dies.
	if checkout.calledInTx {
		t.Error("gateway expiry must run after the booking transaction commits")
	}
	if len(store.cleared) != 1 || store.cleared[0] != order.ID {
		t.Errorf("expected session fields cleared in the booking transaction, got %v", store.cleared)
	}
}

func TestCancelByConsumerScope(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	slot := futureSlot(uuid.New())
	store.slots[slot.ID] = slot

	consumerID := uuid.New()
	orderSrc := &fakeOrderSource{order: domain.NewOrder(consumerID, "ABO-20250101-00003", 0)}
	svc := newTestService(store, orderSrc, &fakeCheckout{}, &fakeNotifier{})

	if booked, _ := svc.BookSlot(ctx, slot.ID, consumerID, domain.BookingDetails{}); !booked {
		t.Fatal("setup booking failed")
	}

	if err := svc.CancelByConsumer(ctx, slot.ID, uuid.New()); err != domain.ErrNotFound {
		t.Errorf("foreign consumer cancel: expected ErrNotFound, got %v", err)
	}
	if err := svc.CancelByConsumer(ctx, slot.ID, consumerID); err != nil {
		t.Errorf("own cancel failed: %v", err)
	}
	if len(store.booked) != 0 {
		t.Error("booking should be removed")
	}
}

func TestCancelByOwnerRemovesBooking(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	slot := futureSlot(uuid.New())
	store.slots[slot.ID] = slot

	consumerID := uuid.New()
	order := domain.NewOrder(consumerID, "ABO-20250101-00004", 0)
	order.Status = domain.OrderPaid
	orderSrc := &fakeOrderSource{order: order}
	notifier := &fakeNotifier{}
	svc := newTestService(store, orderSrc, &fakeCheckout{}, notifier)

	// Book before the order is marked paid in the fake.
	orderSrc.order.Status = domain.OrderPending
	if booked, _ := svc.BookSlot(ctx, slot.ID, consumerID, domain.BookingDetails{}); !booked {
		t.Fatal("setup booking failed")
	}
	orderSrc.order.Status = domain.OrderPaid

	if err := svc.CancelByOwner(ctx, slot.ID); err != nil {
		t.Fatalf("owner cancel failed: %v", err)
	}
	if len(store.booked) != 0 {
		t.Error("booking should be removed even on a paid order")
	}
}
