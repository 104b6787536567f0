package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Graph engines
const (
	EngineMemory = "memory"
	EngineNeo4j  = "neo4j"
)

// Tracing backends
const (
	TracingNone = "none"
	TracingOTLP = "otlp"
	TracingXRay = "xray"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string
	BaseURI       string
	LogLevel      string

	// Graph engine
	GraphEngine   string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Class declarations
	SchemaPath      string
	WatchSchema     bool
	AllowExtensions bool

	// Authentication for the extension endpoint
	JWTSecret      string
	JWTIssuer      string
	RateLimitTable string
	AdminRateLimit int

	// AWS configuration
	AWSRegion     string
	EventBusName  string
	EventTable    string
	EventTTL      time.Duration
	RelayInterval time.Duration

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Observability
	EnableMetrics    bool
	MetricsNamespace string
	EnableTracing    bool
	TracingBackend   string
	OTLPEndpoint     string
	TraceSampleRate  float64

	// HTTP
	EnableCORS     bool
	AllowedOrigins []string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		BaseURI:       strings.TrimSuffix(getEnv("BASE_URI", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		GraphEngine:   getEnv("GRAPH_ENGINE", EngineMemory),
		Neo4jURI:      getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase: getEnv("NEO4J_DATABASE", ""),

		SchemaPath:      getEnv("SCHEMA_PATH", ""),
		WatchSchema:     getEnvBool("WATCH_SCHEMA", false),
		AllowExtensions: getEnvBool("ALLOW_EXTENSIONS", false),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "neorest"),
		RateLimitTable: getEnv("RATE_LIMIT_TABLE", ""),
		AdminRateLimit: getEnvInt("ADMIN_RATE_LIMIT", 10),

		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		EventBusName:  getEnv("EVENT_BUS_NAME", ""),
		EventTable:    getEnv("EVENT_TABLE", ""),
		EventTTL:      getEnvDuration("EVENT_TTL", 30*24*time.Hour),
		RelayInterval: getEnvDuration("RELAY_INTERVAL", 5*time.Second),

		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		EnableMetrics:    getEnvBool("ENABLE_METRICS", false),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "NeoRest"),
		EnableTracing:    getEnvBool("ENABLE_TRACING", false),
		TracingBackend:   getEnv("TRACING_BACKEND", TracingOTLP),
		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TraceSampleRate:  getEnvFloat("TRACE_SAMPLE_RATE", 1.0),

		EnableCORS:     getEnvBool("ENABLE_CORS", true),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.LambdaFunctionName != "" {
		cfg.IsLambda = true
	}
	if !cfg.EnableTracing {
		cfg.TracingBackend = TracingNone
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.GraphEngine {
	case EngineMemory:
	case EngineNeo4j:
		if c.Neo4jURI == "" {
			return fmt.Errorf("NEO4J_URI is required for the neo4j engine")
		}
	default:
		return fmt.Errorf("unknown GRAPH_ENGINE %q", c.GraphEngine)
	}

	switch c.TracingBackend {
	case TracingNone, TracingOTLP, TracingXRay:
	default:
		return fmt.Errorf("unknown TRACING_BACKEND %q", c.TracingBackend)
	}

	if c.AllowExtensions && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ALLOW_EXTENSIONS is set")
	}
	if c.AdminRateLimit <= 0 {
		return fmt.Errorf("ADMIN_RATE_LIMIT must be positive")
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATE must be between 0 and 1")
	}

	if c.IsProduction() {
		if c.GraphEngine == EngineMemory {
			return fmt.Errorf("the memory engine is not allowed in production")
		}
		if c.BaseURI == "" {
			return fmt.Errorf("BASE_URI is required in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
