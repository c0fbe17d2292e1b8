package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
)

const (
	EventPaymentSucceeded = "checkout.session.completed"
	EventPaymentFailed    = "checkout.session.failed"
	EventSessionExpired   = "checkout.session.expired"
)

// Event is the webhook envelope. The order id travels in the session
// metadata the service set at creation time.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		SessionID       string            `json:"session_id"`
		PaymentIntentID string            `json:"payment_intent_id"`
		Metadata        map[string]string `json:"metadata"`
	} `json:"data"`
}

func ParseEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: malformed webhook payload", domain.ErrInvalidInput)
	}
	if ev.ID == "" || ev.Type == "" {
		return Event{}, fmt.Errorf("%w: webhook event missing id or type", domain.ErrInvalidInput)
	}
	return ev, nil
}
