package notifications

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/crdb"
)

// Event types carried over the notification exchange.
const (
	EventBookingAccepted  = "booking.accepted"
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
	EventOrderPaid        = "order.paid"
	EventOrderExpired     = "order.expired"
)

// Port is the narrow notification collaborator: fire-and-forget from the
// core's perspective, delivery is someone else's job.
type Port interface {
	Notify(ctx context.Context, tx pgx.Tx, recipientID, senderID uuid.UUID, eventType string, data map[string]string) error
}

type payload struct {
	RecipientID uuid.UUID         `json:"recipient_id"`
	SenderID    uuid.UUID         `json:"sender_id"`
	Data        map[string]string `json:"data"`
}

// Outbox writes notifications as outbox rows in the caller's transaction, so
// a rolled-back booking never notifies anyone.
type Outbox struct {
	repo *crdb.Repository
}

func NewOutbox(repo *crdb.Repository) *Outbox {
	return &Outbox{repo: repo}
}

func (o *Outbox) Notify(ctx context.Context, tx pgx.Tx, recipientID, senderID uuid.UUID, eventType string, data map[string]string) error {
	body, err := json.Marshal(payload{RecipientID: recipientID, SenderID: senderID, Data: data})
	if err != nil {
		return err
	}
	rec := crdb.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "notification",
		AggregateID:   recipientID,
		EventType:     eventType,
		Payload:       body,
		DedupeKey:     uuid.New().String(),
	}
	if tx != nil {
		return o.repo.InsertOutbox(ctx, tx, rec)
	}
	return o.repo.WithTx(ctx, func(tx pgx.Tx) error {
		return o.repo.InsertOutbox(ctx, tx, rec)
	})
}
