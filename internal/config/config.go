package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Timezone    string `envconfig:"TIMEZONE" default:"UTC"`

	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPTimeout         time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	HTTPIdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	OmisePublicKey      string        `envconfig:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey      string        `envconfig:"OMISE_SECRET_KEY"`
	PaymentCurrency     string        `envconfig:"PAYMENT_CURRENCY" default:"thb"`
	PublicBaseURL       string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	PaymentPollInterval time.Duration `envconfig:"PAYMENT_POLL_INTERVAL" default:"5s"`
	PaymentPollTimeout  time.Duration `envconfig:"PAYMENT_POLL_TIMEOUT" default:"10m"`

	SlotHoldTTL   time.Duration `envconfig:"SLOT_HOLD_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`

	RecurringWeeksAhead int           `envconfig:"RECURRING_WEEKS_AHEAD" default:"4"`
	RecurringInterval   time.Duration `envconfig:"RECURRING_INTERVAL" default:"1h"`

	MeetingBaseURL string `envconfig:"MEETING_BASE_URL" default:"https://meet.jit.si"`

	TelegramToken string `envconfig:"TELEGRAM_TOKEN"`

	RabbitURL      string `envconfig:"RABBIT_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"booking.events"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func Load() (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.PaymentPollInterval <= 0 || cfg.PaymentPollTimeout < cfg.PaymentPollInterval {
		return nil, fmt.Errorf("PAYMENT_POLL_TIMEOUT must be at least PAYMENT_POLL_INTERVAL")
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if cfg.RecurringWeeksAhead < 1 || cfg.RecurringWeeksAhead > 26 {
		return nil, fmt.Errorf("RECURRING_WEEKS_AHEAD must be between 1 and 26")
	}

	return &cfg, nil
}

// Location часовой пояс для дат слотов
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// PaymentsEnabled заданы ли ключи платёжного шлюза
func (c *Config) PaymentsEnabled() bool {
	return c.OmisePublicKey != "" && c.OmiseSecretKey != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
