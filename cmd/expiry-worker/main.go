package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/crdb"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/gateway"
	redisadapter "github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/redis"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/config"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/expiry"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/notifications"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/orders"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/payments"
)

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

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	dedup := redisadapter.NewDedup(redisClient)

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayWebhookSecret)
	notifier := notifications.NewOutbox(repo)
	orderSvc := orders.NewService(repo, logger, cfg.OrderNumberPrefix)
	paymentSvc := payments.NewService(repo, orderSvc, gw, dedup, notifier, nil, logger)

	worker := expiry.NewWorker(repo, paymentSvc, notifier, logger, cfg.PendingOrderTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, cfg.ExpiryInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}
