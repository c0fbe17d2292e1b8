package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/crdb"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/gateway"
	mongoadapter "github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/mongo"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/appointment-bookings-and-orders/internal/adapters/redis"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/bookings"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/config"
	httphandler "github.com/robertarktes/appointment-bookings-and-orders/internal/http"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/notifications"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/orders"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/payments"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/rateLimit"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/slots"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("abo"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient)
	dedup := redisadapter.NewDedup(redisClient)
	rl := rateLimit.NewRateLimiter(cache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	if _, err := rabbit.NewPublisher(rabbitConn); err != nil {
		log.Fatalf("failed to declare exchange: %v", err)
	}

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayWebhookSecret)
	notifier := notifications.NewOutbox(repo)

	slotSvc := slots.NewService(repo, logger)
	orderSvc := orders.NewService(repo, logger, cfg.OrderNumberPrefix)
	paymentSvc := payments.NewService(repo, orderSvc, gw, dedup, notifier, audit, logger)
	bookingSvc := bookings.NewService(repo, orderSvc, paymentSvc, cache, notifier, audit, logger)

	handlers := httphandler.NewHandlers(slotSvc, bookingSvc, orderSvc, paymentSvc)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
