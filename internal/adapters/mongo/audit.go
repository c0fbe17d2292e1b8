package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger mirrors booking/order lifecycle events into mongo,
// best-effort; failures are logged and never block the write path.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	ActorID   uuid.UUID `bson:"actor_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, actorID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogBooking(ctx context.Context, action string, b domain.Booking) error {
	data := map[string]interface{}{
		"booking_id": b.ID,
		"slot_id":    b.SlotID,
	}
	if b.OrderID != nil {
		data["order_id"] = *b.OrderID
	}
	return a.LogEvent(ctx, action, b.ConsumerID, data)
}

func (a *AuditLogger) LogOrder(ctx context.Context, action string, o domain.Order) error {
	data := map[string]interface{}{
		"order_id": o.ID,
		"number":   o.Number,
		"status":   o.Status,
	}
	return a.LogEvent(ctx, action, o.ConsumerID, data)
}
