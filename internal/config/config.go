package config

import (
	"os"
	"strconv"
	"time"
)

// Config collects every tunable the engine reads from the environment.
type Config struct {
	AppPort string

	// Terminal discovery
	ScanRange         string
	TerminalPort      int
	ScanConcurrency   int
	ProbeTimeout      time.Duration
	CacheTTL          time.Duration
	TerminalStore     string // "yaml" or "postgres"
	TerminalsFile     string
	DatabaseURL       string
	DefaultCredential string

	// Circuit breaker
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration
	BreakerWindow           time.Duration

	// Retry
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	// Polling
	PollFastInterval time.Duration
	PollSlowInterval time.Duration
	PollMaxInterval  time.Duration
	PollMaxDuration  time.Duration

	SessionTTL time.Duration
}

// Load reads the environment, applying defaults for anything unset.
func Load() Config {
	return Config{
		AppPort: getString("APP_PORT", "8090"),

		ScanRange:         getString("TERMINAL_SCAN_RANGE", "192.168.1.0/24"),
		TerminalPort:      getInt("TERMINAL_PORT", 8080),
		ScanConcurrency:   getInt("SCAN_CONCURRENCY", 32),
		ProbeTimeout:      getDuration("PROBE_TIMEOUT", 500*time.Millisecond),
		CacheTTL:          getDuration("TERMINAL_CACHE_TTL", 30*time.Second),
		TerminalStore:     getString("TERMINAL_STORE", "yaml"),
		TerminalsFile:     getString("TERMINALS_FILE", "terminals.yaml"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DefaultCredential: os.Getenv("TERMINAL_API_KEY"),

		BreakerFailureThreshold: getInt("BREAKER_FAILURE_THRESHOLD", 3),
		BreakerSuccessThreshold: getInt("BREAKER_SUCCESS_THRESHOLD", 2),
		BreakerTimeout:          getDuration("BREAKER_TIMEOUT", 30*time.Second),
		BreakerWindow:           getDuration("BREAKER_WINDOW", time.Minute),

		RetryMaxAttempts: getInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getDuration("RETRY_BASE_DELAY", 250*time.Millisecond),
		RetryMaxDelay:    getDuration("RETRY_MAX_DELAY", 5*time.Second),

		PollFastInterval: getDuration("POLL_FAST_INTERVAL", 500*time.Millisecond),
		PollSlowInterval: getDuration("POLL_SLOW_INTERVAL", 2*time.Second),
		PollMaxInterval:  getDuration("POLL_MAX_INTERVAL", 5*time.Second),
		PollMaxDuration:  getDuration("POLL_MAX_DURATION", 5*time.Minute),

		SessionTTL: getDuration("SESSION_TTL", 2*time.Minute),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
