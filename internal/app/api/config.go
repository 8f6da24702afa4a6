package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"

	"github.com/Apurer/go-order-admin/internal/domains/orders/adapters/workflows"
	platformaws "github.com/Apurer/go-order-admin/internal/platform/aws"
)

// Config carries environment-driven settings for the API and worker processes.
type Config struct {
	Port               string
	PostgresDSN        string
	TemporalAddress    string
	TemporalNamespace  string
	TemporalDisabled   bool
	EventsQueueURL     string
	EventsSQSEndpoint  string
	AWSRegion          string
	ReportingLocation  *time.Location
	RestockConcurrency int
	RestockWaitTimeout time.Duration
}

// LoadConfig reads an optional .env file and the environment, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	cfg := Config{
		Port:               envDefault("PORT", "8080"),
		PostgresDSN:        strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		TemporalAddress:    envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace:  envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:   isTruthy(os.Getenv("TEMPORAL_DISABLED")),
		EventsQueueURL:     strings.TrimSpace(os.Getenv("EVENTS_SQS_QUEUE_URL")),
		EventsSQSEndpoint:  strings.TrimSpace(os.Getenv("EVENTS_SQS_ENDPOINT")),
		AWSRegion:          envDefault("AWS_REGION", platformaws.DefaultRegion),
		RestockConcurrency: workflows.DefaultConcurrency,
		RestockWaitTimeout: workflows.DefaultWaitTimeout,
	}
	loc, err := time.LoadLocation(envDefault("REPORTING_TIMEZONE", "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("REPORTING_TIMEZONE must be an IANA zone name: %w", err)
	}
	cfg.ReportingLocation = loc
	if raw := strings.TrimSpace(os.Getenv("RESTOCK_CONCURRENCY")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("RESTOCK_CONCURRENCY must be a positive integer")
		}
		cfg.RestockConcurrency = n
	}
	if raw := strings.TrimSpace(os.Getenv("RESTOCK_WAIT_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("RESTOCK_WAIT_TIMEOUT must be a positive duration")
		}
		cfg.RestockWaitTimeout = d
	}
	return cfg, nil
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
