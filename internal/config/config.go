package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config настройки шлюза витрины, читаются из окружения
type Config struct {
	HTTPAddr     string
	APIBaseURL   string
	PublicOrigin string
	CORSOrigins  []string
	GinMode      string

	SessionStore  string
	DatabaseURL   string
	SessionCookie string
	CookieSecure  bool
	SessionTTL    time.Duration

	BackendTimeout     time.Duration
	PaymentPollDelay   time.Duration
	OrderWatchInterval time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	OTLPEndpoint string
	ServiceName  string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":9091"),
		APIBaseURL:    getenv("API_BASE_URL", "http://localhost:8000/"),
		PublicOrigin:  strings.TrimRight(getenv("PUBLIC_ORIGIN", "http://localhost:3000"), "/"),
		GinMode:       os.Getenv("GIN_MODE"),
		SessionStore:  strings.ToLower(getenv("SESSION_STORE", StoreMemory)),
		SessionCookie: getenv("SESSION_COOKIE", "evercart_session"),
		KafkaTopic:    getenv("KAFKA_TOPIC", "storefront-events"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:   getenv("SERVICE_NAME", "storefront"),
	}

	if !strings.HasSuffix(cfg.APIBaseURL, "/") {
		cfg.APIBaseURL += "/"
	}
	if err := checkURL("API_BASE_URL", cfg.APIBaseURL); err != nil {
		return Config{}, err
	}
	if err := checkURL("PUBLIC_ORIGIN", cfg.PublicOrigin); err != nil {
		return Config{}, err
	}

	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.PublicOrigin}
	}
	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))

	var err error
	if cfg.CookieSecure, err = getBool("COOKIE_SECURE", false); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.BackendTimeout, err = getDuration("BACKEND_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PaymentPollDelay, err = getDuration("PAYMENT_POLL_DELAY", 1500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.OrderWatchInterval, err = getDuration("ORDER_WATCH_INTERVAL", 3*time.Second); err != nil {
		return Config{}, err
	}

	switch cfg.SessionStore {
	case StoreMemory:
	case StorePostgres:
		cfg.DatabaseURL = databaseURL()
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("SESSION_STORE=postgres requires DATABASE_URL or DB_HOST")
		}
	default:
		return Config{}, fmt.Errorf("SESSION_STORE: unknown store %q", cfg.SessionStore)
	}

	return cfg, nil
}

// databaseURL prefers DATABASE_URL and falls back to the DB_* parts.
func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host,
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		getenv("DB_PORT", "5432"),
		getenv("DB_SSLMODE", "disable"),
	)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", key)
	}
	return d, nil
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: unsupported scheme %q", key, u.Scheme)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
