package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("GRAPH_ENGINE", "")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	t.Setenv("ENABLE_TRACING", "")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, EngineMemory, cfg.GraphEngine)
	assert.Equal(t, TracingNone, cfg.TracingBackend)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 10, cfg.AdminRateLimit)
	assert.False(t, cfg.IsLambda)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("BASE_URI", "https://graph.example.com/")
	t.Setenv("GRAPH_ENGINE", "neo4j")
	t.Setenv("ENABLE_TRACING", "true")
	t.Setenv("TRACING_BACKEND", "xray")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("EVENT_TTL", "2h")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "neorest-api")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "https://graph.example.com", cfg.BaseURI)
	assert.Equal(t, EngineNeo4j, cfg.GraphEngine)
	assert.Equal(t, TracingXRay, cfg.TracingBackend)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.EventTTL)
	assert.True(t, cfg.IsLambda)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Environment:     "development",
			GraphEngine:     EngineMemory,
			TracingBackend:  TracingNone,
			AdminRateLimit:  10,
			TraceSampleRate: 1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown engine", func(c *Config) { c.GraphEngine = "sqlite" }, `unknown GRAPH_ENGINE "sqlite"`},
		{"unknown tracing", func(c *Config) { c.TracingBackend = "jaeger" }, `unknown TRACING_BACKEND "jaeger"`},
		{"extensions need secret", func(c *Config) { c.AllowExtensions = true }, "JWT_SECRET is required when ALLOW_EXTENSIONS is set"},
		{"rate limit", func(c *Config) { c.AdminRateLimit = 0 }, "ADMIN_RATE_LIMIT must be positive"},
		{"sample rate", func(c *Config) { c.TraceSampleRate = 2 }, "TRACE_SAMPLE_RATE must be between 0 and 1"},
		{"production memory", func(c *Config) { c.Environment = "production" }, "the memory engine is not allowed in production"},
		{"production base uri", func(c *Config) {
			c.Environment = "production"
			c.GraphEngine = EngineNeo4j
			c.Neo4jURI = "neo4j://db:7687"
		}, "BASE_URI is required in production"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
