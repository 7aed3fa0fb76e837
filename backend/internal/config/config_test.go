package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.Addr())
	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, "http://localhost:11434/api/generate", cfg.LLM.URL)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.LLM.RetryDelay)
	assert.Equal(t, 100, cfg.LLM.ExcerptChars)
	assert.False(t, cfg.LLM.BreakerEnabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentProfiles(t *testing.T) {
	tests := []struct {
		env      string
		timeout  time.Duration
		attempts int
	}{
		{EnvDevelopment, 10 * time.Second, 3},
		{EnvStaging, 15 * time.Second, 3},
		{EnvProduction, 20 * time.Second, 5},
		{EnvTesting, time.Second, 1},
		{"nonsense", 10 * time.Second, 3},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("KAOS_ENV", tt.env)
			cfg := Load()
			assert.Equal(t, tt.timeout, cfg.LLM.Timeout)
			assert.Equal(t, tt.attempts, cfg.LLM.MaxAttempts)
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAOS_HOST", "0.0.0.0")
	t.Setenv("KAOS_PORT", "8088")
	t.Setenv("LLM_TIMEOUT_SEC", "7")
	t.Setenv("LLM_MAX_ATTEMPTS", "4")
	t.Setenv("LLM_RETRY_DELAY_MS", "250")
	t.Setenv("LLM_BREAKER_ENABLED", "true")
	t.Setenv("RISK_PROFILE", "tiered")
	t.Setenv("SCOPE_POLICY_FILE", "/etc/kaos/scope.cedar")
	t.Setenv("SCOPE_POLICY_WATCH", "true")
	t.Setenv("SERVER_MAX_REQUEST_SIZE", "not-a-number")

	cfg := Load()
	assert.Equal(t, "0.0.0.0:8088", cfg.Server.Addr())
	assert.Equal(t, int64(1024*1024), cfg.Server.MaxRequestSize)
	assert.Equal(t, "tiered", cfg.Rules.Profile)
	require.NoError(t, cfg.Validate())

	ac := cfg.AugmentConfig()
	assert.Equal(t, 7*time.Second, ac.AttemptTimeout)
	assert.Equal(t, 4, ac.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, ac.RetryDelay)
	assert.True(t, ac.Breaker.Enabled)
	assert.Equal(t, 5, ac.Breaker.FailureThreshold)
}

func TestLoad_HostedBackend(t *testing.T) {
	t.Setenv("LLM_BACKEND", "OpenAI")
	t.Setenv("LLM_BASE_URL", "https://api.groq.com/openai/v1")
	t.Setenv("LLM_MODEL", "llama-3.1-8b-instant")

	cfg := Load()
	assert.Equal(t, "openai", cfg.LLM.Backend)
	assert.Error(t, cfg.Validate(), "api key is required")

	t.Setenv("LLM_API_KEY", "sk-test")
	cfg = Load()
	require.NoError(t, cfg.Validate())

	pc := cfg.ProviderConfig()
	assert.Equal(t, "https://api.groq.com/openai/v1", pc.URL)
	assert.Equal(t, "llama-3.1-8b-instant", pc.Model)
	assert.Equal(t, "sk-test", pc.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.LLM.Backend = "gemini" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"zero attempts", func(c *Config) { c.LLM.MaxAttempts = 0 }},
		{"watch without file", func(c *Config) { c.Scope.Watch = true }},
		{"no ollama url", func(c *Config) { c.LLM.URL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
