package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string // API bind address, e.g. "127.0.0.1:8080" or ":8080" (Docker)
	LogDir      string
	LogLevel    string
	DatabaseURL string // empty means use the in-memory store

	PublicAPIKeys  []string
	AdminAPIKeys   []string
	AllowedOrigins []string // empty allows every origin

	PublicRPM   int
	PublicBurst int
	AdminRPM    int
	AdminBurst  int

	FlagCacheTTL time.Duration

	ProbeTimeout     time.Duration // per probe
	ProbeConcurrency int
	RetryAttempts    int           // extra attempts for http probes without their own setting
	RetryBackoff     time.Duration // backoff between retries
	ProbesFile       string        // YAML probe definitions

	SlackWebhookURL string
	AlertOnRecovery bool
	AlertCooldown   time.Duration

	SLALocation *time.Location
}

func FromEnv() Config {
	// Bind address (Windows-friendly default)
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	loc := time.UTC
	if name := os.Getenv("SLA_TIMEZONE"); name != "" {
		if l, err := time.LoadLocation(name); err == nil {
			loc = l
		}
	}

	return Config{
		Addr:        addr,
		LogDir:      str("LOG_DIR", "logs"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		PublicAPIKeys:  list("PUBLIC_API_KEYS"),
		AdminAPIKeys:   list("ADMIN_API_KEYS"),
		AllowedOrigins: list("ALLOWED_ORIGINS"),

		PublicRPM:   positive("PUBLIC_RPM", 60),
		PublicBurst: positive("PUBLIC_BURST", 20),
		AdminRPM:    positive("ADMIN_RPM", 600),
		AdminBurst:  positive("ADMIN_BURST", 100),

		FlagCacheTTL: millis("FLAG_CACHE_TTL_MS", 60*time.Second),

		ProbeTimeout:     millis("PROBE_TIMEOUT_MS", 10*time.Second),
		ProbeConcurrency: positive("PROBE_CONCURRENCY", 8),
		RetryAttempts:    nonNegative("RETRY_ATTEMPTS", 2),
		RetryBackoff:     millis("RETRY_BACKOFF_MS", 300*time.Millisecond),
		ProbesFile:       str("PROBES_FILE", "probes.yaml"),

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		AlertOnRecovery: boolean("ALERT_ON_RECOVERY", true),
		AlertCooldown:   millis("ALERT_COOLDOWN_MS", 10*time.Minute),

		SLALocation: loc,
	}
}

func str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// list splits a comma separated value, dropping blanks.
func list(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func positive(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func nonNegative(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func millis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func boolean(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
