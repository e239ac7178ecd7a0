// Package config loads service settings from the environment and engine
// tuning from optional TOML profiles. Malformed environment values fall
// back to defaults; Validate catches combinations that cannot work.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Service struct {
	// Port is the TCP port the HTTP service listens on.
	Port string

	// ProviderKey authenticates against the extraction API. Empty is
	// allowed: the service starts but reports itself not ready.
	ProviderKey string
	// ProviderURL overrides the extraction endpoint. Empty selects the
	// client's hosted default.
	ProviderURL string

	// AuthToken, when set, gates every document request behind a bearer
	// token check.
	AuthToken string

	// MaxFileSize caps uploaded document size in bytes.
	MaxFileSize int64
	// MaxPages caps the page count of accepted documents.
	MaxPages int

	// PageWorkers is the engine's per-document page concurrency.
	PageWorkers int
	// MaxConcurrent caps documents processed at once across requests.
	MaxConcurrent int64

	// RateLimitEvery and RateLimitBurst shape the per-IP token bucket.
	RateLimitEvery time.Duration
	RateLimitBurst int

	// MaxConns caps accepted TCP connections.
	MaxConns int

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// ProcessTimeout bounds one document's OCR plus embedding work.
	ProcessTimeout time.Duration

	// LogLevel feeds the zap logger: debug, info, warn, error.
	LogLevel string

	// ProfilePath points at an optional TOML tuning profile.
	ProfilePath string
}

// Load reads service settings from the environment, falling back to
// defaults that match the hosted deployment.
func Load() Service {
	return Service{
		Port: envStr("PORT", "8080"),

		ProviderKey: envStr("NANONETS_API_KEY", ""),
		ProviderURL: envStr("OCR_API_URL", ""),

		AuthToken: envStr("AUTH_TOKEN", ""),

		MaxFileSize: int64(envInt("MAX_FILE_SIZE", 10<<20)),
		MaxPages:    envInt("MAX_PAGES", 5),

		PageWorkers:   envInt("PAGE_WORKERS", 4),
		MaxConcurrent: int64(envInt("MAX_CONCURRENT_REQUESTS", 8)),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 500*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		MaxConns: envInt("MAX_CONNS", 256),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),

		ProcessTimeout: envDur("PROCESS_TIMEOUT", 180*time.Second),

		LogLevel: envStr("LOG_LEVEL", "info"),

		ProfilePath: envStr("PROFILE_PATH", ""),
	}
}

// Addr returns the listen address for the configured port.
func (c Service) Addr() string { return ":" + c.Port }

func (c Service) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("config: PORT %q is not a valid TCP port", c.Port)
	}
	if c.MaxFileSize < 1024 {
		return fmt.Errorf("config: MAX_FILE_SIZE %d is below any plausible document", c.MaxFileSize)
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("config: MAX_PAGES must be at least 1, got %d", c.MaxPages)
	}
	if c.PageWorkers < 1 {
		return fmt.Errorf("config: PAGE_WORKERS must be at least 1, got %d", c.PageWorkers)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("config: MAX_CONCURRENT_REQUESTS must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.RateLimitEvery <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("config: rate limit needs a positive interval and burst")
	}
	if c.ProcessTimeout <= 0 {
		return fmt.Errorf("config: PROCESS_TIMEOUT must be positive")
	}
	return nil
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
