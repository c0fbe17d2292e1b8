package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/rabbit"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/config"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
)

// The notifier drains booking and order events into recipient-facing
// delivery. The delivery channel itself (mail, push) is deployment specific;
// this binary acks and logs, and is the seam to plug a real sender into.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "abo.notifications", []string{"booking.*", "order.*"})
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for d := range deliveries {
			var msg struct {
				RecipientID string            `json:"recipient_id"`
				SenderID    string            `json:"sender_id"`
				Data        map[string]string `json:"data"`
			}
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				logger.Error("malformed notification payload", err)
				d.Nack(false, false)
				continue
			}
			logger.WithField("event", d.RoutingKey).
				WithField("recipient_id", msg.RecipientID).
				Info("notification delivered")
			d.Ack(false)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier")
}
