package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Limits is the inclusive payment amount band.
type Limits struct {
	MinAmount string `yaml:"min_amount"`
	MaxAmount string `yaml:"max_amount"`
}

// Notify configures outbound payment notifications.
type Notify struct {
	WebhookURL string        `yaml:"webhook_url"`
	Template   string        `yaml:"template"`
	Statuses   []string      `yaml:"statuses"`
	Timeout    time.Duration `yaml:"timeout"`
	NSQAddress string        `yaml:"nsq_address"`
	NSQTopic   string        `yaml:"nsq_topic"`
}

// Config is the process configuration.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	HTTPAddr    string `yaml:"http_addr"`
	JWTSecret   string `yaml:"jwt_secret"`
	LogLevel    string `yaml:"log_level"`
	Limits      Limits `yaml:"limits"`
	Notify      Notify `yaml:"notify"`
}

// Load reads an optional .env file, the environment and then the YAML file
// named by CITYPAY_CONFIG. Values in the YAML file win.
func Load() (Config, error) {
	envFile := getenvDefault("CITYPAY_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	cfg := Config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		LogLevel:    getenvDefault("LOG_LEVEL", "info"),
		Limits: Limits{
			MinAmount: getenvDefault("PAYMENT_MIN_AMOUNT", "0.01"),
			MaxAmount: getenvDefault("PAYMENT_MAX_AMOUNT", "10000.00"),
		},
		Notify: Notify{
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
			Template:   os.Getenv("NOTIFY_TEMPLATE"),
			Statuses:   splitCSV(os.Getenv("NOTIFY_STATUSES")),
			Timeout:    getenvDuration("NOTIFY_TIMEOUT", 5*time.Second),
			NSQAddress: os.Getenv("NSQD_ADDRESS"),
			NSQTopic:   getenvDefault("NSQ_TOPIC", "payment_events"),
		},
	}

	if path := os.Getenv("CITYPAY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks required values.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	if c.HTTPAddr == "" {
		return errors.New("config: http addr required")
	}
	min, max, err := c.Limits.Parse()
	if err != nil {
		return err
	}
	if min.GreaterThan(max) {
		return fmt.Errorf("config: min amount %s above max amount %s", min, max)
	}
	return nil
}

// Parse returns the limits as decimals.
func (l Limits) Parse() (decimal.Decimal, decimal.Decimal, error) {
	min, err := decimal.NewFromString(strings.TrimSpace(l.MinAmount))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("config: min amount: %w", err)
	}
	max, err := decimal.NewFromString(strings.TrimSpace(l.MaxAmount))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("config: max amount: %w", err)
	}
	return min, max, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		if seconds, convErr := strconv.Atoi(value); convErr == nil {
			return time.Duration(seconds) * time.Second
		}
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
