package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestOrderNumberFormat(t *testing.T) {
	createdAt := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)
	got := OrderNumber("ABO", createdAt, 1)
	want := "ABO-20250101-00001"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	got = OrderNumber("ABO", createdAt, 12345)
	if got != "ABO-20250101-12345" {
		t.Errorf("unexpected number %s", got)
	}
}

func TestOrderNumberUniqueWithinDay(t *testing.T) {
	createdAt := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for seq := 1; seq <= 100; seq++ {
		n := OrderNumber("ABO", createdAt, seq)
		if seen[n] {
			t.Fatalf("duplicate number %s at seq %d", n, seq)
		}
		seen[n] = true
	}
}

func TestOrderFinalized(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{OrderPending, false},
		{OrderPaid, true},
		{OrderCancelled, true},
	}
	for _, tc := range cases {
		o := Order{Status: tc.status}
		if o.Finalized() != tc.want {
			t.Errorf("Finalized() for %s: expected %v", tc.status, tc.want)
		}
	}
}

func TestOrderTotal(t *testing.T) {
	reduction := 10.0
	slots := []Slot{
		{Price: 100.0},
		{Price: 50.0, Reduction: &reduction},
	}
	order := Order{TaxRate: 0.19}

	got := order.Total(slots)
	want := 140.0 * 1.19
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected total %f, got %f", want, got)
	}
}

func TestOrderTotalEmpty(t *testing.T) {
	order := Order{TaxRate: 0.19}
	if total := order.Total(nil); total != 0 {
		t.Errorf("expected zero total, got %f", total)
	}
}

func TestHasOpenCheckout(t *testing.T) {
	o := Order{}
	if o.HasOpenCheckout() {
		t.Error("order without session should have no open checkout")
	}
	id := "cs_123"
	o.CheckoutSessionID = &id
	if !o.HasOpenCheckout() {
		t.Error("order with session should have open checkout")
	}
	empty := ""
	o.CheckoutSessionID = &empty
	if o.HasOpenCheckout() {
		t.Error("empty session id is not an open checkout")
	}
}

func TestNewOrder(t *testing.T) {
	consumerID := uuid.New()
	o := NewOrder(consumerID, fmt.Sprintf("ABO-20250101-%05d", 1), 0.19)
	if o.Status != OrderPending {
		t.Errorf("expected PENDING, got %s", o.Status)
	}
	if o.ConsumerID != consumerID {
		t.Error("consumer id not set")
	}
	if o.TaxRate != 0.19 {
		t.Errorf("expected tax rate 0.19, got %f", o.TaxRate)
	}
}
