package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func NewOrder(consumerID uuid.UUID, number string, taxRate float64) Order {
	return Order{
		ID:         uuid.New(),
		ConsumerID: consumerID,
		Number:     number,
		Status:     OrderPending,
		TaxRate:    taxRate,
		CreatedAt:  time.Now().UTC(),
	}
}

// OrderNumber builds the human-readable order number, e.g. ABO-20250101-00001.
// seq is 1-based within the calendar day of createdAt.
func OrderNumber(prefix string, createdAt time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%05d", prefix, createdAt.Format("20060102"), seq)
}

// Finalized reports whether the order reached a terminal status.
func (o Order) Finalized() bool {
	return o.Status == OrderPaid || o.Status == OrderCancelled
}

func (o Order) HasOpenCheckout() bool {
	return o.CheckoutSessionID != nil && *o.CheckoutSessionID != ""
}

// Total sums the effective slot prices of the order's bookings and applies
// the order's tax rate.
func (o Order) Total(slots []Slot) float64 {
	var net float64
	for _, s := range slots {
		net += s.EffectivePrice()
	}
	return net * (1 + o.TaxRate)
}
