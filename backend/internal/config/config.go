package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/augment"
	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/provider"
)

// Environment profiles selected by KAOS_ENV.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// Config holds all application configuration
type Config struct {
	Environment string

	Server  ServerConfig
	LLM     LLMConfig
	Rules   RulesConfig
	Scope   ScopeConfig
	Audit   AuditConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int64

	RateLimitEnabled   bool
	RateLimitPerMinute int
	RateLimitPerHour   int
	RateLimitKeyBy     string // ip, session, global
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LLMConfig holds the reasoning service backend and its call budget.
type LLMConfig struct {
	Backend      string // ollama, openai, anthropic
	URL          string
	Model        string
	APIKey       string
	MaxTokens    int
	Timeout      time.Duration // per attempt
	MaxAttempts  int
	RetryDelay   time.Duration
	ExcerptChars int

	BreakerEnabled   bool
	BreakerFailures  int
	BreakerSuccesses int
	BreakerCooldown  time.Duration
}

// RulesConfig holds rule registry settings
type RulesConfig struct {
	File    string
	Profile string
}

// ScopeConfig holds engagement-scope policy settings
type ScopeConfig struct {
	PolicyFile string
	Watch      bool
}

// AuditConfig holds decision audit settings
type AuditConfig struct {
	File    string
	Enabled bool
}

// MetricsConfig holds metrics/monitoring settings
type MetricsConfig struct {
	Enabled bool
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Prefix string
}

// profile carries the per-environment defaults.
type profile struct {
	host        string
	ollamaURL   string
	model       string
	timeout     time.Duration
	maxAttempts int
}

var profiles = map[string]profile{
	EnvDevelopment: {host: "127.0.0.1", ollamaURL: "http://localhost:11434/api/generate", model: "mistral", timeout: 10 * time.Second, maxAttempts: 3},
	EnvStaging:     {host: "0.0.0.0", ollamaURL: "http://ollama:11434/api/generate", model: "mistral", timeout: 15 * time.Second, maxAttempts: 3},
	EnvProduction:  {host: "0.0.0.0", ollamaURL: "http://ollama:11434/api/generate", model: "mistral", timeout: 20 * time.Second, maxAttempts: 5},
	EnvTesting:     {host: "127.0.0.1", ollamaURL: "http://localhost:11434/api/generate", model: "test-model", timeout: 1 * time.Second, maxAttempts: 1},
}

// Load reads configuration from environment variables. Unknown KAOS_ENV
// values fall back to the development profile.
func Load() *Config {
	env := strings.ToLower(getEnv("KAOS_ENV", EnvDevelopment))
	p, ok := profiles[env]
	if !ok {
		env, p = EnvDevelopment, profiles[EnvDevelopment]
	}

	cfg := &Config{
		Environment: env,
		Server: ServerConfig{
			Host:           getEnv("KAOS_HOST", getEnv("SERVER_HOST", p.host)),
			Port:           getEnvInt("KAOS_PORT", getEnvInt("SERVER_PORT", 5000)),
			ReadTimeout:    time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SEC", 30)) * time.Second,
			WriteTimeout:   time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 120)) * time.Second,
			RequestTimeout: time.Duration(getEnvInt("SERVER_REQUEST_TIMEOUT_SEC", 0)) * time.Second,
			MaxRequestSize: int64(getEnvInt("SERVER_MAX_REQUEST_SIZE", 1024*1024)), // 1MB default

			RateLimitEnabled:   getEnvBool("RATE_LIMIT_ENABLED", false),
			RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
			RateLimitPerHour:   getEnvInt("RATE_LIMIT_PER_HOUR", 1000),
			RateLimitKeyBy:     getEnv("RATE_LIMIT_KEY_BY", "ip"),
		},
		LLM: LLMConfig{
			Backend:      strings.ToLower(getEnv("LLM_BACKEND", "ollama")),
			URL:          getEnv("OLLAMA_URL", p.ollamaURL),
			Model:        getEnv("OLLAMA_MODEL", p.model),
			APIKey:       getEnv("LLM_API_KEY", ""),
			MaxTokens:    getEnvInt("LLM_MAX_TOKENS", 256),
			Timeout:      time.Duration(getEnvInt("LLM_TIMEOUT_SEC", int(p.timeout/time.Second))) * time.Second,
			MaxAttempts:  getEnvInt("LLM_MAX_ATTEMPTS", p.maxAttempts),
			RetryDelay:   getEnvDuration("LLM_RETRY_DELAY_MS", 2*time.Second),
			ExcerptChars: getEnvInt("LLM_EXCERPT_CHARS", 100),

			BreakerEnabled:   getEnvBool("LLM_BREAKER_ENABLED", false),
			BreakerFailures:  getEnvInt("LLM_BREAKER_FAILURES", 5),
			BreakerSuccesses: getEnvInt("LLM_BREAKER_SUCCESSES", 1),
			BreakerCooldown:  time.Duration(getEnvInt("LLM_BREAKER_COOLDOWN_SEC", 30)) * time.Second,
		},
		Rules: RulesConfig{
			File:    getEnv("RULES_FILE", ""),
			Profile: getEnv("RISK_PROFILE", ""),
		},
		Scope: ScopeConfig{
			PolicyFile: getEnv("SCOPE_POLICY_FILE", ""),
			Watch:      getEnvBool("SCOPE_POLICY_WATCH", false),
		},
		Audit: AuditConfig{
			File:    getEnv("AUDIT_LOG_FILE", ""),
			Enabled: getEnvBool("AUDIT_ENABLED", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		Logging: LoggingConfig{
			Prefix: getEnv("LOG_PREFIX", "[kaos-brain] "),
		},
	}

	// Non-Ollama backends take their endpoint from LLM_BASE_URL.
	if cfg.LLM.Backend != "ollama" {
		cfg.LLM.URL = getEnv("LLM_BASE_URL", "")
		cfg.LLM.Model = getEnv("LLM_MODEL", "")
	}

	return cfg
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.LLM.Backend {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported LLM_BACKEND %q", c.LLM.Backend)
	}
	if c.LLM.Backend == "ollama" && c.LLM.URL == "" {
		return fmt.Errorf("OLLAMA_URL is required")
	}
	if c.LLM.Backend != "ollama" && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required for backend %s", c.LLM.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1")
	}
	if c.Scope.Watch && c.Scope.PolicyFile == "" {
		return fmt.Errorf("SCOPE_POLICY_WATCH requires SCOPE_POLICY_FILE")
	}
	return nil
}

// ProviderConfig returns the reasoning backend settings.
func (c *Config) ProviderConfig() provider.Config {
	return provider.Config{
		Backend:   c.LLM.Backend,
		URL:       c.LLM.URL,
		Model:     c.LLM.Model,
		APIKey:    c.LLM.APIKey,
		MaxTokens: c.LLM.MaxTokens,
	}
}

// AugmentConfig returns the retry and circuit breaker budget for the
// augmentation orchestrator.
func (c *Config) AugmentConfig() augment.Config {
	return augment.Config{
		AttemptTimeout: c.LLM.Timeout,
		MaxAttempts:    c.LLM.MaxAttempts,
		RetryDelay:     c.LLM.RetryDelay,
		ExcerptChars:   c.LLM.ExcerptChars,
		Breaker: augment.BreakerConfig{
			Enabled:          c.LLM.BreakerEnabled,
			FailureThreshold: c.LLM.BreakerFailures,
			SuccessThreshold: c.LLM.BreakerSuccesses,
			Cooldown:         c.LLM.BreakerCooldown,
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration reads a millisecond count.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
