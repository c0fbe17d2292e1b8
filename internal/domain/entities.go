package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderPending   = "PENDING"
	OrderPaid      = "PAID"
	OrderCancelled = "CANCELLED"
)

type Slot struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Start     time.Time
	End       time.Time
	Price     float64
	Reduction *float64
	Type      string
}

type Booking struct {
	ID          uuid.UUID
	SlotID      uuid.UUID
	ConsumerID  uuid.UUID
	OrderID     *uuid.UUID
	Subject     string
	Description string
	Category    string
	CreatedAt   time.Time
}

type Order struct {
	ID                uuid.UUID
	ConsumerID        uuid.UUID
	Number            string
	Status            string
	TaxRate           float64
	CreatedAt         time.Time
	UpdatedAt         *time.Time
	PaidAt            *time.Time
	CheckoutSessionID *string
	CheckoutExpiresAt *time.Time
	PaymentIntentID   *string
}

// TaxRate rows are append-only; the rate that applies to an order is the
// newest row whose ValidFrom is not after the order's creation time.
type TaxRate struct {
	ID        uuid.UUID
	Rate      float64
	ValidFrom time.Time
}
