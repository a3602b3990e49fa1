package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 5001, cfg.Server.Port)
				assert.Equal(t, 8001, cfg.Metrics.Port)
				assert.Equal(t, "mlops-service-prometheus", cfg.Metrics.ServiceName)
				assert.Equal(t, "gemini-1.5-flash", cfg.Metrics.DefaultModel)
				assert.Equal(t, 0, cfg.Metrics.MaxSeries)
				assert.Equal(t, 30*24*time.Hour, cfg.Metrics.RebuildWindow)
				assert.Equal(t, PersistenceModeNoop, cfg.Persistence.Mode)
				assert.False(t, cfg.Persistence.Authoritative)
				assert.Equal(t, 1000, cfg.Persistence.BufferSize)
				assert.Equal(t, 2, cfg.Persistence.WorkerCount)
				assert.False(t, cfg.Database.Configured())
				assert.False(t, cfg.Metrics.RuntimeCollectors)
				assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
				assert.Empty(t, cfg.Auth.JWTSecret)
			},
		},
		{
			name: "postgres persistence from DATABASE_URL",
			envVars: map[string]string{
				"PERSISTENCE_MODE":          "Postgres",
				"PERSISTENCE_AUTHORITATIVE": "true",
				"DATABASE_URL":              "postgres://u:p@db.example.com:5433/metrics?sslmode=require",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, PersistenceModePostgres, cfg.Persistence.Mode)
				assert.True(t, cfg.Persistence.Authoritative)
				assert.True(t, cfg.Database.Configured())
				assert.Equal(t, "host=db.example.com port=5433 database=metrics", cfg.Database.LogString())
			},
		},
		{
			name: "metrics settings",
			envVars: map[string]string{
				"PROMETHEUS_PORT":            "9102",
				"METRICS_MAX_SERIES":         "500",
				"METRICS_REBUILD_ON_START":   "false",
				"DEFAULT_MODEL_NAME":         "gpt-4o-mini",
				"METRICS_RUNTIME_COLLECTORS": "true",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9102, cfg.Metrics.Port)
				assert.Equal(t, 500, cfg.Metrics.MaxSeries)
				assert.False(t, cfg.Metrics.RebuildOnStart)
				assert.Equal(t, "gpt-4o-mini", cfg.Metrics.DefaultModel)
				assert.True(t, cfg.Metrics.RuntimeCollectors)
				assert.Equal(t, "0.0.0.0:9102", cfg.MetricsAddress())
			},
		},
		{
			name: "CORS origins list",
			envVars: map[string]string{
				"CORS_ALLOWED_ORIGINS": "http://localhost:3000, https://app.example.com ,",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.CORS.AllowedOrigins)
			},
		},
		{
			name: "PORT env var takes precedence over SERVICE_PORT",
			envVars: map[string]string{
				"PORT":         "9443",
				"SERVICE_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "SERVICE_PORT env var when PORT not set",
			envVars: map[string]string{
				"SERVICE_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
			},
		},
		{
			name: "unknown persistence mode",
			envVars: map[string]string{
				"PERSISTENCE_MODE": "redis",
			},
			wantErr: true,
		},
		{
			name: "authoritative postgres without database",
			envVars: map[string]string{
				"PERSISTENCE_MODE":          "postgres",
				"PERSISTENCE_AUTHORITATIVE": "true",
			},
			wantErr: true,
		},
		{
			name: "negative series cap",
			envVars: map[string]string{
				"METRICS_MAX_SERIES": "-1",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			// Create config
			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment: "development",
			Server:      ServerConfig{Port: 5001},
			Metrics:     MetricsConfig{Port: 8001, DefaultModel: "gemini-1.5-flash"},
			Persistence: PersistenceConfig{Mode: PersistenceModeNoop, BufferSize: 10, WorkerCount: 1},
			Observability: ObservabilityConfig{
				LogLevel: "info",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid development config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "metrics listener disabled",
			mutate:  func(c *Config) { c.Metrics.Port = 0 },
			wantErr: false,
		},
		{
			name:    "invalid service port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
			errMsg:  "invalid service port",
		},
		{
			name:    "missing default model",
			mutate:  func(c *Config) { c.Metrics.DefaultModel = "" },
			wantErr: true,
			errMsg:  "default model name is required",
		},
		{
			name: "authoritative postgres with host",
			mutate: func(c *Config) {
				c.Persistence = PersistenceConfig{Mode: PersistenceModePostgres, Authoritative: true, BufferSize: 10, WorkerCount: 1}
				c.Database.Host = "localhost"
			},
			wantErr: false,
		},
		{
			name:    "no persistence workers",
			mutate:  func(c *Config) { c.Persistence.WorkerCount = 0 },
			wantErr: true,
			errMsg:  "worker count must be positive",
		},
		{
			name:    "missing log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "" },
			wantErr: true,
			errMsg:  "log level is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, cfg.DSN())
	assert.Equal(t, "host=localhost port=5432 database=testdb", cfg.LogString())

	cfg.ConnectionString = "postgres://u:p@neon.tech/ai"
	assert.Equal(t, "postgres://u:p@neon.tech/ai", cfg.DSN())
	assert.Equal(t, "host=neon.tech port=5432 database=ai", cfg.LogString())
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "0.0.0.0",
		Port: 5001,
	}

	assert.Equal(t, "0.0.0.0:5001", cfg.Address())
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue int
		want         int
	}{
		{"valid int", "TEST_INT", "42", 10, 42},
		{"empty value", "TEST_INT", "", 10, 10},
		{"invalid int", "TEST_INT", "not-a-number", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsInt(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "TEST_BOOL", "true", false, true},
		{"false", "TEST_BOOL", "false", true, false},
		{"empty value", "TEST_BOOL", "", true, true},
		{"invalid bool", "TEST_BOOL", "not-a-bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsBool(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}
