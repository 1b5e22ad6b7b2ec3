package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("CITYPAY_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, key := range []string{"DATABASE_URL", "PG_DSN", "HTTP_ADDR", "JWT_SECRET", "CITYPAY_CONFIG", "NOTIFY_STATUSES", "NOTIFY_TIMEOUT", "PAYMENT_MIN_AMOUNT", "PAYMENT_MAX_AMOUNT"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("AUTH_JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DatabaseURL != "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	min, max, err := cfg.Limits.Parse()
	if err != nil {
		t.Fatalf("limits: %v", err)
	}
	if !min.Equal(decimal.RequireFromString("0.01")) || !max.Equal(decimal.RequireFromString("10000")) {
		t.Fatalf("unexpected limits %s..%s", min, max)
	}
	if cfg.Notify.Timeout != 5*time.Second || cfg.Notify.NSQTopic != "payment_events" {
		t.Fatalf("unexpected notify defaults: %+v", cfg.Notify)
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	isolate(t)
	t.Setenv("AUTH_JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing secret error")
	}
}

func TestLoad_DotEnvAndYAMLOverlay(t *testing.T) {
	isolate(t)
	t.Setenv("AUTH_JWT_SECRET", "")
	dir := t.TempDir()

	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("AUTH_JWT_SECRET=from-dotenv\nNOTIFY_STATUSES=FAILED, COMPLETED\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("CITYPAY_ENV_FILE", envFile)
	// godotenv never overrides a variable that is present, even when empty.
	_ = os.Unsetenv("AUTH_JWT_SECRET")
	_ = os.Unsetenv("NOTIFY_STATUSES")

	yamlFile := filepath.Join(dir, "citypay.yaml")
	body := "http_addr: \":9090\"\nlimits:\n  min_amount: \"1.00\"\n  max_amount: \"500\"\nnotify:\n  webhook_url: http://hooks.local/pay\n"
	if err := os.WriteFile(yamlFile, []byte(body), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("CITYPAY_CONFIG", yamlFile)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != "from-dotenv" {
		t.Fatalf("expected secret from .env, got %q", cfg.JWTSecret)
	}
	if len(cfg.Notify.Statuses) != 2 || cfg.Notify.Statuses[1] != "COMPLETED" {
		t.Fatalf("unexpected statuses %v", cfg.Notify.Statuses)
	}
	if cfg.HTTPAddr != ":9090" || cfg.Notify.WebhookURL != "http://hooks.local/pay" {
		t.Fatalf("yaml overlay not applied: %+v", cfg)
	}
	min, max, _ := cfg.Limits.Parse()
	if !min.Equal(decimal.NewFromInt(1)) || !max.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected limits %s..%s", min, max)
	}
}

func TestValidate_RejectsInvertedLimits(t *testing.T) {
	cfg := Config{HTTPAddr: ":1", JWTSecret: "s", Limits: Limits{MinAmount: "10", MaxAmount: "1"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected inverted limits error")
	}
	cfg.Limits = Limits{MinAmount: "abc", MaxAmount: "1"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected parse error")
	}
}
