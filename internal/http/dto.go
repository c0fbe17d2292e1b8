package http

import (
	"time"

	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
)

// Pure mapping functions between domain rows and transport shapes.

type slotResponse struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"owner_id"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Price     float64  `json:"price"`
	Reduction *float64 `json:"reduction,omitempty"`
	Type      string   `json:"type,omitempty"`
}

func toSlotResponse(s domain.Slot) slotResponse {
	return slotResponse{
		ID:        s.ID.String(),
		OwnerID:   s.OwnerID.String(),
		Start:     s.Start.Format(time.RFC3339),
		End:       s.End.Format(time.RFC3339),
		Price:     s.Price,
		Reduction: s.Reduction,
		Type:      s.Type,
	}
}

func toSlotResponses(slots []domain.Slot) []slotResponse {
	out := make([]slotResponse, len(slots))
	for i, s := range slots {
		out[i] = toSlotResponse(s)
	}
	return out
}

type bookingResponse struct {
	ID          string  `json:"id"`
	SlotID      string  `json:"slot_id"`
	ConsumerID  string  `json:"consumer_id"`
	OrderID     *string `json:"order_id,omitempty"`
	Subject     string  `json:"subject,omitempty"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	SlotStart   string  `json:"slot_start"`
	SlotEnd     string  `json:"slot_end"`
	SlotPrice   float64 `json:"slot_price"`
	CreatedAt   string  `json:"created_at"`
}

func toBookingResponse(v domain.BookingView) bookingResponse {
	resp := bookingResponse{
		ID:          v.ID.String(),
		SlotID:      v.SlotID.String(),
		ConsumerID:  v.ConsumerID.String(),
		Subject:     v.Subject,
		Description: v.Description,
		Category:    v.Category,
		SlotStart:   v.SlotStart.Format(time.RFC3339),
		SlotEnd:     v.SlotEnd.Format(time.RFC3339),
		SlotPrice:   v.SlotPrice,
		CreatedAt:   v.CreatedAt.Format(time.RFC3339),
	}
	if v.OrderID != nil {
		id := v.OrderID.String()
		resp.OrderID = &id
	}
	return resp
}

func toBookingResponses(views []domain.BookingView) []bookingResponse {
	out := make([]bookingResponse, len(views))
	for i, v := range views {
		out[i] = toBookingResponse(v)
	}
	return out
}

type orderResponse struct {
	ID                string  `json:"id"`
	ConsumerID        string  `json:"consumer_id"`
	Number            string  `json:"number"`
	Status            string  `json:"status"`
	TaxRate           float64 `json:"tax_rate"`
	CreatedAt         string  `json:"created_at"`
	PaidAt            *string `json:"paid_at,omitempty"`
	CheckoutSessionID *string `json:"checkout_session_id,omitempty"`
}

func toOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:                o.ID.String(),
		ConsumerID:        o.ConsumerID.String(),
		Number:            o.Number,
		Status:            o.Status,
		TaxRate:           o.TaxRate,
		CreatedAt:         o.CreatedAt.Format(time.RFC3339),
		CheckoutSessionID: o.CheckoutSessionID,
	}
	if o.PaidAt != nil {
		t := o.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &t
	}
	return resp
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	return out
}

type pageResponse struct {
	Total int         `json:"total"`
	Items interface{} `json:"items"`
}
