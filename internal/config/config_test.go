package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "API_BASE_URL", "SESSION_STORE", "KAFKA_BROKERS", "CORS_ORIGINS", "PUBLIC_ORIGIN"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9091" {
		t.Fatalf("addr %q", cfg.HTTPAddr)
	}
	if cfg.SessionStore != StoreMemory {
		t.Fatalf("store %q", cfg.SessionStore)
	}
	if cfg.PaymentPollDelay != 1500*time.Millisecond {
		t.Fatalf("poll delay %v", cfg.PaymentPollDelay)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("expected no brokers")
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != cfg.PublicOrigin {
		t.Fatalf("cors origins %v", cfg.CORSOrigins)
	}
}

func TestLoad_TrailingSlashAndLists(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.com/" {
		t.Fatalf("base url %q", cfg.APIBaseURL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers %v", cfg.KafkaBrokers)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PAYMENT_POLL_DELAY", "soon")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "PAYMENT_POLL_DELAY") {
		t.Fatalf("expected named duration error, got %v", err)
	}
	t.Setenv("PAYMENT_POLL_DELAY", "")

	t.Setenv("SESSION_STORE", "redis")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unknown store error")
	}

	t.Setenv("SESSION_STORE", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing dsn error")
	}

	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "evercart")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(cfg.DatabaseURL, "host=db") || !strings.Contains(cfg.DatabaseURL, "dbname=evercart") {
		t.Fatalf("dsn %q", cfg.DatabaseURL)
	}
}
