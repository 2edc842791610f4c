package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers string
	KafkaTopic   string

	// Currency — валюта магазина; все заказы создаются в ней.
	Currency string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	CartCleanupInterval  time.Duration
	CartCleanupBatchSize int
	GuestCartTTL         time.Duration
}

// DefaultConfig возвращает базовую конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:             ":8080",
		MetricsAddr:          ":9090",
		StorageDriver:        StorageDriverMemory,
		PostgresAutoMigrate:  true,
		KafkaTopic:           kafka.TopicOrderEvents,
		Currency:             "USD",
		OutboxPollInterval:   time.Second,
		OutboxBatchSize:      100,
		OutboxMaxAttempts:    3,
		OutboxRetryDelay:     50 * time.Millisecond,
		CartCleanupInterval:  30 * time.Minute,
		CartCleanupBatchSize: 500,
		GuestCartTTL:         7 * 24 * time.Hour,
	}
}

// ConfigFromEnv строит конфигурацию из переменных окружения CHECKOUT_*,
// отталкиваясь от значений по умолчанию.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	setString(&cfg.HTTPAddr, "CHECKOUT_HTTP_ADDR")
	setString(&cfg.MetricsAddr, "CHECKOUT_METRICS_ADDR")
	setString(&cfg.StorageDriver, "CHECKOUT_STORAGE_DRIVER")
	setString(&cfg.PostgresDSN, "CHECKOUT_POSTGRES_DSN")
	setBool(&cfg.PostgresAutoMigrate, "CHECKOUT_POSTGRES_AUTO_MIGRATE")
	setString(&cfg.KafkaBrokers, "CHECKOUT_KAFKA_BROKERS")
	setString(&cfg.KafkaTopic, "CHECKOUT_KAFKA_TOPIC")
	setString(&cfg.Currency, "CHECKOUT_CURRENCY")
	setDuration(&cfg.OutboxPollInterval, "CHECKOUT_OUTBOX_POLL_INTERVAL")
	setInt(&cfg.OutboxBatchSize, "CHECKOUT_OUTBOX_BATCH_SIZE")
	setInt(&cfg.OutboxMaxAttempts, "CHECKOUT_OUTBOX_MAX_ATTEMPTS")
	setDuration(&cfg.OutboxRetryDelay, "CHECKOUT_OUTBOX_RETRY_DELAY")
	setDuration(&cfg.CartCleanupInterval, "CHECKOUT_CART_CLEANUP_INTERVAL")
	setInt(&cfg.CartCleanupBatchSize, "CHECKOUT_CART_CLEANUP_BATCH_SIZE")
	setDuration(&cfg.GuestCartTTL, "CHECKOUT_GUEST_CART_TTL")

	// DSN без явного драйвера означает postgres.
	if cfg.PostgresDSN != "" && os.Getenv("CHECKOUT_STORAGE_DRIVER") == "" {
		cfg.StorageDriver = StorageDriverPostgres
	}

	return cfg
}

func setString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*dst = parsed
		}
	}
}

func setInt(dst *int, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			*dst = parsed
		}
	}
}
