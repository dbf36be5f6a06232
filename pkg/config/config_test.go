package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/grandlivre")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("BALANCE_CACHE_TTL", "90s")
	t.Setenv("ALLOWED_ORIGINS", "https://compta.example.fr")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, 90*time.Second, cfg.BalanceCacheTTL)
	assert.Equal(t, "ledger.events", cfg.KafkaTopic)
	assert.Equal(t, []string{"https://compta.example.fr"}, cfg.AllowedOrigins)
}

func TestLoad_FromDotEnvFile(t *testing.T) {
	// t.Setenv restores the variables that godotenv sets below
	for _, key := range []string{"DATABASE_URL", "JWT_SECRET", "PORT", "KAFKA_BROKERS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	content := "DATABASE_URL=postgres://db/ledger\nJWT_SECRET=" + testSecret + "\nPORT=9090\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/ledger", cfg.DatabaseURL)
	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{DatabaseURL: "postgres://x", JWTSecret: testSecret, BalanceCacheTTL: time.Minute, RateLimit: 10}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL is required"},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "at least 32 characters"},
		{"zero ttl", func(c *Config) { c.BalanceCacheTTL = 0 }, "BALANCE_CACHE_TTL"},
		{"zero rate", func(c *Config) { c.RateLimit = 0 }, "RATE_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
