package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/crdb"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
)

const (
	batchSize   = 10
	maxAttempts = 5
)

// Store claims and settles outbox rows. Fetching and marking must run in
// the same transaction: the FOR UPDATE SKIP LOCKED claim only holds for the
// transaction's lifetime, and it is what keeps concurrent publisher
// instances off each other's batches.
type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetUnpublishedOutbox(ctx context.Context, tx pgx.Tx, limit int) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, publishedAt time.Time) error
	MarkAttempt(ctx context.Context, tx pgx.Tx, id uuid.UUID, maxAttempts int) error
}

type Broker interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// Publisher drains NEW outbox rows into the notification exchange.
type Publisher struct {
	store  Store
	broker Broker
	logger observability.Logger
}

func NewPublisher(store Store, broker Broker, logger observability.Logger) *Publisher {
	return &Publisher{store: store, broker: broker, logger: logger}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

// drain claims a batch and settles it inside one transaction. A message
// delivered to the broker before a failed commit is redelivered on the next
// tick; consumers dedupe on MessageId.
func (p *Publisher) drain(ctx context.Context) {
	err := p.store.WithTx(ctx, func(tx pgx.Tx) error {
		records, err := p.store.GetUnpublishedOutbox(ctx, tx, batchSize)
		if err != nil {
			return err
		}
		for _, rec := range records {
			observability.OutboxLag.Set(time.Since(rec.CreatedAt).Seconds())
			msg := amqp.Publishing{
				MessageId:   rec.DedupeKey,
				ContentType: "application/json",
				Body:        rec.Payload,
			}
			if err := p.broker.Publish(ctx, rec.EventType, msg); err != nil {
				p.logger.WithField("record_id", rec.ID.String()).Error("failed to publish outbox record", err)
				if err := p.store.MarkAttempt(ctx, tx, rec.ID, maxAttempts); err != nil {
					return err
				}
				continue
			}
			if err := p.store.MarkPublished(ctx, tx, rec.ID, time.Now().UTC()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		p.logger.Error("failed to drain outbox", err)
	}
}
