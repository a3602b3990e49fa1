package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Persistence modes
const (
	PersistenceModeNoop     = "noop"
	PersistenceModePostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Metrics       MetricsConfig
	Persistence   PersistenceConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// MetricsConfig holds the aggregation registry and exposition settings
type MetricsConfig struct {
	// Port serves a second /metrics listener, like prometheus_client's start_http_server.
	// Zero disables it.
	Port           int
	ServiceName    string
	Version        string
	DefaultModel   string
	MaxSeries      int // per metric family; 0 means unbounded
	RebuildOnStart bool
	RebuildWindow  time.Duration

	// RuntimeCollectors adds Go runtime and process metrics. They change
	// between scrapes, so /metrics is only byte-stable with this off.
	RuntimeCollectors bool
}

// PersistenceConfig selects the persistence notifier and its failure policy
type PersistenceConfig struct {
	Mode string // noop or postgres
	// Authoritative makes a failed persistence notification fail the /track request.
	Authoritative bool
	// Best-effort notifications are queued and written by a worker pool
	BufferSize  int
	WorkerCount int
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	InitSchema       bool
}

// AuthConfig holds ingestion authentication configuration.
// An empty JWTSecret leaves the ingestion endpoints open.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// CORSConfig holds cross-origin settings for browser clients
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (mlops-service/.env when run from project root, .env otherwise)
	_ = godotenv.Load("mlops-service/.env")
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Metrics: MetricsConfig{
			Port:           getEnvAsInt("PROMETHEUS_PORT", 8001),
			ServiceName:    getEnv("SERVICE_NAME", "mlops-service-prometheus"),
			Version:        getEnv("SERVICE_VERSION", "1.0.0"),
			DefaultModel:   getEnv("DEFAULT_MODEL_NAME", "gemini-1.5-flash"),
			MaxSeries:      getEnvAsInt("METRICS_MAX_SERIES", 0),
			RebuildOnStart: getEnvAsBool("METRICS_REBUILD_ON_START", true),
			RebuildWindow:  getEnvAsDuration("METRICS_REBUILD_WINDOW", 30*24*time.Hour),

			RuntimeCollectors: getEnvAsBool("METRICS_RUNTIME_COLLECTORS", false),
		},
		Persistence: PersistenceConfig{
			Mode:          strings.ToLower(getEnv("PERSISTENCE_MODE", PersistenceModeNoop)),
			Authoritative: getEnvAsBool("PERSISTENCE_AUTHORITATIVE", false),
			BufferSize:    getEnvAsInt("PERSISTENCE_BUFFER_SIZE", 1000),
			WorkerCount:   getEnvAsInt("PERSISTENCE_WORKERS", 2),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret: getEnv("INGEST_JWT_SECRET", ""),
			Issuer:    getEnv("INGEST_JWT_ISSUER", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid service port: %d", c.Server.Port)
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("invalid prometheus port: %d", c.Metrics.Port)
	}
	if c.Metrics.MaxSeries < 0 {
		return fmt.Errorf("metrics max series cannot be negative")
	}
	if c.Metrics.DefaultModel == "" {
		return fmt.Errorf("default model name is required")
	}

	switch c.Persistence.Mode {
	case PersistenceModeNoop, PersistenceModePostgres:
	default:
		return fmt.Errorf("unknown persistence mode: %q", c.Persistence.Mode)
	}

	if c.Persistence.BufferSize <= 0 || c.Persistence.WorkerCount <= 0 {
		return fmt.Errorf("persistence buffer size and worker count must be positive")
	}

	// An authoritative store must actually exist
	if c.Persistence.Authoritative && c.Persistence.Mode == PersistenceModePostgres && !c.Database.Configured() {
		return fmt.Errorf("authoritative postgres persistence requires DATABASE_URL or DB_HOST")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Configured reports whether any connection information was supplied
func (c *DatabaseConfig) Configured() bool {
	return c.ConnectionString != "" || c.Host != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Unlike DATABASE_URL, DB_HOST has no default: the store is optional.
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		InitSchema:      getEnvAsBool("DB_INIT_SCHEMA", true),
	}

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}

	cfg.Host = getEnv("DB_HOST", "")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "mlops")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "mlops")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddress returns the dedicated exposition listener address
func (c *Config) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Metrics.Port)
}

// Helper functions

// getPort returns the service port from PORT or SERVICE_PORT env vars (default: 5001)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVICE_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 5001
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
