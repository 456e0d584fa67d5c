// Package config loads each binary's settings from the environment. A .env
// file in the working directory is read first when present; variables
// already set in the environment win.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Telemetry struct {
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"0.1.0"`
	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"true"`
	OTLPEndpoint   string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
}

// ConsumerRetry bounds the backoff between attempts at a message whose
// handler failed.
type ConsumerRetry struct {
	RetryInitial time.Duration `envconfig:"CONSUMER_RETRY_INITIAL" default:"500ms"`
	RetryMax     time.Duration `envconfig:"CONSUMER_RETRY_MAX" default:"30s"`
}

type Orders struct {
	Telemetry

	Port         string   `envconfig:"PORT" default:"8081"`
	PostgresURL  string   `envconfig:"POSTGRES_URL" required:"true"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`

	CartServiceURL      string        `envconfig:"CART_SERVICE_URL" required:"true"`
	InventoryServiceURL string        `envconfig:"INVENTORY_SERVICE_URL" required:"true"`
	UserServiceURL      string        `envconfig:"USER_SERVICE_URL" required:"true"`
	ClientTimeout       time.Duration `envconfig:"CLIENT_TIMEOUT" default:"3s"`

	BreakerFailureThreshold uint32        `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	BreakerOpenTimeout      time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`
	ReadRetries             uint          `envconfig:"CLIENT_READ_RETRIES" default:"2"`
	RetryInterval           time.Duration `envconfig:"CLIENT_RETRY_INTERVAL" default:"100ms"`

	StepTimeout    time.Duration `envconfig:"SAGA_STEP_TIMEOUT" default:"5s"`
	PublishTimeout time.Duration `envconfig:"PUBLISH_TIMEOUT" default:"5s"`
	CancelTimeout  time.Duration `envconfig:"SAGA_CANCEL_TIMEOUT" default:"30s"`
}

type Inventory struct {
	Telemetry
	ConsumerRetry

	Port          string   `envconfig:"PORT" default:"8082"`
	PostgresURL   string   `envconfig:"POSTGRES_URL" required:"true"`
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`
	ConsumerGroup string   `envconfig:"CONSUMER_GROUP" default:"inventory-service"`

	// SeedEnabled creates rows for catalog products missing one at startup.
	SeedEnabled         bool   `envconfig:"INVENTORY_SEED_ENABLED" default:"false"`
	SeedDefaultQuantity int    `envconfig:"INVENTORY_SEED_DEFAULT_QUANTITY" default:"0"`
	ProductServiceURL   string `envconfig:"PRODUCT_SERVICE_URL" default:"http://product-service:8080"`
}

type Notifier struct {
	Telemetry
	ConsumerRetry

	MetricsPort   string   `envconfig:"METRICS_PORT" default:"9090"`
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS" required:"true"`
	ConsumerGroup string   `envconfig:"CONSUMER_GROUP" default:"notification-service"`

	// DedupBackend is "memory" for a per-instance seen-set or "redis" to
	// share it between instances.
	DedupBackend   string        `envconfig:"DEDUP_BACKEND" default:"memory"`
	DedupRetention time.Duration `envconfig:"DEDUP_RETENTION" default:"24h"`
	DedupCapacity  uint64        `envconfig:"DEDUP_CAPACITY" default:"10000"`
	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	// WebhookURL empty disables every channel.
	WebhookURL     string        `envconfig:"WEBHOOK_URL"`
	WebhookTimeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"5s"`
}

type Migrate struct {
	PostgresURL    string `envconfig:"POSTGRES_URL" required:"true"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`
}

// Load fills cfg, a pointer to one of the structs above, from the environment.
func Load(cfg any) error {
	_ = godotenv.Load()

	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

func (n Notifier) Validate() error {
	switch n.DedupBackend {
	case "memory", "redis":
		return nil
	}
	return fmt.Errorf("unknown DEDUP_BACKEND %q", n.DedupBackend)
}

// WithSearchPath pins every pooled connection of a Postgres URL to schema.
func WithSearchPath(postgresURL, schema string) (string, error) {
	u, err := url.Parse(postgresURL)
	if err != nil {
		return "", fmt.Errorf("parse postgres url: %w", err)
	}

	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
