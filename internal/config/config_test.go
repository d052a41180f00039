package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 25, cfg.DBMaxOpenConnections)
	assert.Equal(t, 5, cfg.DBMaxIdleConnections)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "authorizir.yaml", cfg.SeedFile)
	assert.False(t, cfg.ReconcileOnStart)
	assert.Equal(t, "authorizir", cfg.EngineID)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 8081, cfg.MetricsPort)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SEED_FILE", "/etc/authorizir/seed.yaml")
	t.Setenv("RECONCILE_ON_START", "true")
	t.Setenv("ENGINE_ID", "authorizir-staging")

	cfg := Load()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/etc/authorizir/seed.yaml", cfg.SeedFile)
	assert.True(t, cfg.ReconcileOnStart)
	assert.Equal(t, "authorizir-staging", cfg.EngineID)
}

func TestGetGinMode(t *testing.T) {
	tests := []struct {
		logLevel string
		expected string
	}{
		{"debug", "debug"},
		{"info", "release"},
		{"warn", "release"},
		{"error", "release"},
		{"unknown", "release"},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			assert.Equal(t, tt.expected, cfg.GetGinMode())
		})
	}
}
