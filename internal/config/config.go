package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	CRDBDSN      string `envconfig:"CRDB_DSN" required:"true"`
	MongoURI     string `envconfig:"MONGO_URI"`
	RedisAddr    string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RabbitURL    string `envconfig:"RABBIT_URL"`
	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":8080"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	OrderNumberPrefix string        `envconfig:"ORDER_NUMBER_PREFIX" default:"ABO"`
	PendingOrderTTL   time.Duration `envconfig:"PENDING_ORDER_TTL" default:"2m"`
	ExpiryInterval    time.Duration `envconfig:"EXPIRY_INTERVAL" default:"2m"`

	GatewayBaseURL       string `envconfig:"GATEWAY_BASE_URL"`
	GatewayAPIKey        string `envconfig:"GATEWAY_API_KEY"`
	GatewayWebhookSecret string `envconfig:"GATEWAY_WEBHOOK_SECRET"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
