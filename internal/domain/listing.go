package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	SortBySlotStart = "slot_start"
	SortByCreatedAt = "created_at"
	SortByPaidAt    = "paid_at"
)

type BookingFilter struct {
	From       *time.Time
	To         *time.Time
	ConsumerID *uuid.UUID
	Search     string
	SortBy     string
	Offset     int
	Limit      int
}

type OrderFilter struct {
	From   *time.Time
	To     *time.Time
	Status string
	Search string
	SortBy string
	Offset int
	Limit  int
}

// BookingView is the booking row joined with its slot, the shape the list
// endpoints return.
type BookingView struct {
	Booking
	SlotStart time.Time
	SlotEnd   time.Time
	SlotPrice float64
}
