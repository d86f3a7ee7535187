// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment mode.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// MinAdminKeyLen is the minimum accepted admin key length.
const MinAdminKeyLen = 32

// LLMConfig configures the chat-completions provider.
type LLMConfig struct {
	Provider    string
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
	MaxRetries  int
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Capacity   float64
	RefillRate float64 // tokens per second
	TTL        time.Duration
}

// Config is the full process configuration.
type Config struct {
	Env  Environment
	Port int

	// CacheURL selects the remote cache; empty means the in-process map.
	CacheURL string

	AdminAPIKey string
	// IPHashSalt salts the client address hash used for rate limiting and
	// session lookup.
	IPHashSalt string

	LLM       LLMConfig
	RateLimit RateLimitConfig

	// ChatSystemPrompt overrides the built-in system prompt when set.
	ChatSystemPrompt string
	// ChatTimeout bounds one chat request including retries and tool loops.
	ChatTimeout time.Duration
	// RequestTimeout bounds every other request.
	RequestTimeout time.Duration

	CORSOrigins []string
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Env:         Environment(getEnvOrDefault("APP_ENV", string(EnvDevelopment))),
		CacheURL:    os.Getenv("CACHE_URL"),
		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),
		IPHashSalt:  getEnvOrDefault("IP_HASH_SALT", "openfolio"),
		LLM: LLMConfig{
			Provider:   getEnvOrDefault("LLM_PROVIDER", "openai"),
			Endpoint:   os.Getenv("LLM_ENDPOINT"),
			APIKey:     os.Getenv("LLM_API_KEY"),
			Model:      getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:  getEnvInt("LLM_MAX_TOKENS", 1024),
			Timeout:    getEnvDuration("LLM_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvInt("LLM_MAX_RETRIES", 3),
		},
		RateLimit: RateLimitConfig{
			Capacity:   getEnvFloat("RATE_LIMIT_CAPACITY", 10),
			RefillRate: getEnvFloat("RATE_LIMIT_REFILL_RATE", 0.5),
			TTL:        getEnvDuration("RATE_LIMIT_TTL", 5*time.Minute),
		},
		ChatSystemPrompt: os.Getenv("CHAT_SYSTEM_PROMPT"),
		ChatTimeout:      getEnvDuration("CHAT_TIMEOUT", 60*time.Second),
		RequestTimeout:   getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
	}

	switch cfg.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q", cfg.Env)
	}

	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.Port = port

	if raw := os.Getenv("LLM_TEMPERATURE"); raw != "" {
		temp, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid LLM_TEMPERATURE: %w", err)
		}
		cfg.LLM.Temperature = &temp
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if cfg.AdminAPIKey == "" {
		return nil, fmt.Errorf("ADMIN_API_KEY is required")
	}
	if len(cfg.AdminAPIKey) < MinAdminKeyLen {
		return nil, fmt.Errorf("ADMIN_API_KEY must be at least %d characters", MinAdminKeyLen)
	}
	if cfg.RateLimit.Capacity <= 0 || cfg.RateLimit.RefillRate <= 0 {
		return nil, fmt.Errorf("rate limit capacity and refill rate must be positive")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
