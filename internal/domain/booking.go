package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingDetails struct {
	Subject     string
	Description string
	Category    string
}

func NewBooking(slotID, consumerID, orderID uuid.UUID, details BookingDetails) Booking {
	oid := orderID
	return Booking{
		ID:          uuid.New(),
		SlotID:      slotID,
		ConsumerID:  consumerID,
		OrderID:     &oid,
		Subject:     details.Subject,
		Description: details.Description,
		Category:    details.Category,
		CreatedAt:   time.Now().UTC(),
	}
}
