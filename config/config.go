package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Fetch     FetchConfig
	Scan      ScanConfig
	DeepScan  DeepScanConfig
	Brand     BrandConfig
	LLM       LLMConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// FetchConfig controls the resilient page fetcher.
type FetchConfig struct {
	// Timeout is the per-attempt deadline for a single profile.
	Timeout time.Duration // default: 20s

	// ProfileBackoff is the pause between failed impersonation profiles.
	ProfileBackoff time.Duration // default: 2s

	// ProfileMemoryTTL is how long a domain remembers its last working profile.
	ProfileMemoryTTL time.Duration // default: 24h

	// Referer is sent with every request.
	Referer string // default: "https://www.google.com/"

	// Proxy is an optional proxy URL applied to all requests.
	Proxy string

	// DomainHeaders maps a host to extra request headers for that host.
	// Env format: "host:Header=value|host:Other-Header=value".
	DomainHeaders map[string]map[string]string

	// DomainCookies maps a host to the Cookie header sent with its requests.
	// Env format: "host=cookie|host=cookie".
	DomainCookies map[string]string
}

// ScanConfig controls the multi-domain scan runner.
type ScanConfig struct {
	// DomainWorkers is the number of domains scanned in parallel.
	DomainWorkers int // default: 4

	// PacePerSecond caps the rate at which new domain fetches start.
	PacePerSecond float64 // default: 1

	// TextMatchThreshold is the brand-token coverage above which a page with
	// no extractable products is classified "Text Match".
	TextMatchThreshold float64 // default: 0.5
}

// DeepScanConfig controls the product-page enrichment pool.
type DeepScanConfig struct {
	// Workers is the size of the deep-scan worker pool.
	Workers int // default: 3

	// CandidateCap is the maximum number of records ever submitted for
	// enrichment in one scan.
	CandidateCap int // default: 50

	// SuccessCap stops the pool after this many successful enrichments.
	SuccessCap int // default: 3
}

// BrandConfig controls brand-matching heuristics.
type BrandConfig struct {
	// TokenMinLen is the minimum length of a brand token (exclusive) for the
	// multi-word partial match and for text-coverage classification.
	TokenMinLen int // default: 2
}

// LLMConfig controls the optional AI-assisted extraction strategy.
// The strategy is disabled when APIKey is empty.
type LLMConfig struct {
	APIKey     string
	Model      string // default: "gpt-4o-mini"
	BaseURL    string // default: "https://api.openai.com/v1"
	CharBudget int    // default: 12000 (page markdown truncation)
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the scan result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached scan results.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("BRANDSCAN_HOST", "0.0.0.0"),
			Port: envIntOr("BRANDSCAN_PORT", 8080),
			Mode: envOr("BRANDSCAN_MODE", "release"),
		},
		Fetch: FetchConfig{
			Timeout:          envDurationOr("BRANDSCAN_FETCH_TIMEOUT", 20*time.Second),
			ProfileBackoff:   envDurationOr("BRANDSCAN_PROFILE_BACKOFF", 2*time.Second),
			ProfileMemoryTTL: envDurationOr("BRANDSCAN_PROFILE_MEMORY_TTL", 24*time.Hour),
			Referer:          envOr("BRANDSCAN_REFERER", "https://www.google.com/"),
			Proxy:            os.Getenv("BRANDSCAN_PROXY"),
			DomainHeaders:    envHeaderMap("BRANDSCAN_DOMAIN_HEADERS"),
			DomainCookies:    envCookieMap("BRANDSCAN_DOMAIN_COOKIES"),
		},
		Scan: ScanConfig{
			DomainWorkers:      envIntOr("BRANDSCAN_DOMAIN_WORKERS", 4),
			PacePerSecond:      envFloatOr("BRANDSCAN_PACE_PER_SECOND", 1.0),
			TextMatchThreshold: envFloatOr("BRANDSCAN_TEXT_MATCH_THRESHOLD", 0.5),
		},
		DeepScan: DeepScanConfig{
			Workers:      envIntOr("BRANDSCAN_DEEPSCAN_WORKERS", 3),
			CandidateCap: envIntOr("BRANDSCAN_DEEPSCAN_CANDIDATE_CAP", 50),
			SuccessCap:   envIntOr("BRANDSCAN_DEEPSCAN_SUCCESS_CAP", 3),
		},
		Brand: BrandConfig{
			TokenMinLen: envIntOr("BRANDSCAN_BRAND_TOKEN_MIN_LEN", 2),
		},
		LLM: LLMConfig{
			APIKey:     os.Getenv("BRANDSCAN_LLM_API_KEY"),
			Model:      envOr("BRANDSCAN_LLM_MODEL", "gpt-4o-mini"),
			BaseURL:    envOr("BRANDSCAN_LLM_BASE_URL", "https://api.openai.com/v1"),
			CharBudget: envIntOr("BRANDSCAN_LLM_CHAR_BUDGET", 12000),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("BRANDSCAN_AUTH_ENABLED", true),
			APIKeys: envSliceOr("BRANDSCAN_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("BRANDSCAN_RATE_RPS", 5.0),
			Burst:             envIntOr("BRANDSCAN_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("BRANDSCAN_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("BRANDSCAN_LOG_LEVEL", "info"),
			Format: envOr("BRANDSCAN_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envHeaderMap parses "host:Header=value" entries separated by "|".
func envHeaderMap(key string) map[string]map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := make(map[string]map[string]string)
	for _, entry := range strings.Split(v, "|") {
		host, header, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			continue
		}
		name, value, ok := strings.Cut(header, "=")
		if !ok || host == "" || name == "" {
			continue
		}
		if out[host] == nil {
			out[host] = make(map[string]string)
		}
		out[host][name] = strings.TrimSpace(value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// envCookieMap parses "host=cookie" entries separated by "|". Cookies may
// contain "="; only the first one splits.
func envCookieMap(key string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := make(map[string]string)
	for _, entry := range strings.Split(v, "|") {
		host, cookie, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || host == "" {
			continue
		}
		out[host] = strings.TrimSpace(cookie)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
