package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "disabled", cfg.Generative.Provider)
	assert.Equal(t, 8*time.Second, cfg.Generative.Timeout)
	assert.Equal(t, 5, cfg.Generative.BreakerMaxFailures)
	assert.Equal(t, "header", cfg.Auth.Mode)
	assert.Equal(t, "X-User-ID", cfg.Auth.UserHeader)
	assert.Equal(t, 10, cfg.RateLimit.GeneratePerMinute)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("ECOTRACK_STORE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "/tmp/ecotrack.db")
	t.Setenv("ECOTRACK_CACHE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ECOTRACK_GENERATIVE_TIMEOUT", "3s")
	t.Setenv("ECOTRACK_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ecotrack.example.edu,https://*.ecotrack-web.pages.dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/tmp/ecotrack.db", cfg.Store.DSN)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, 3*time.Second, cfg.Generative.Timeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"https://ecotrack.example.edu", "https://*.ecotrack-web.pages.dev"}, cfg.Server.AllowedOrigins)
	assert.NoError(t, cfg.ValidateKafka())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:      StoreConfig{Driver: "memory"},
			Cache:      CacheConfig{Backend: "memory"},
			Generative: GenerativeConfig{Provider: "disabled"},
			Auth:       AuthConfig{Mode: "header", UserHeader: "X-User-ID"},
			RateLimit:  RateLimitConfig{GeneratePerMinute: 10},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown store", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: "unknown store.driver"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: "store.dsn is required"},
		{
			name:    "supabase store needs credentials",
			mutate:  func(c *Config) { c.Store.Driver = "supabase"; c.Store.DSN = "postgres://x" },
			wantErr: "SUPABASE_URL is required",
		},
		{name: "redis without url", mutate: func(c *Config) { c.Cache.Backend = "redis" }, wantErr: "cache.redis_url"},
		{
			name:    "openrouter without key",
			mutate:  func(c *Config) { c.Generative.Provider = "openrouter"; c.Generative.Model = "m" },
			wantErr: "OPENROUTER_API_KEY",
		},
		{name: "bedrock without model", mutate: func(c *Config) { c.Generative.Provider = "bedrock" }, wantErr: "generative.model"},
		{name: "supabase auth without client", mutate: func(c *Config) { c.Auth.Mode = "supabase" }, wantErr: "supabase auth"},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimit.GeneratePerMinute = 0 }, wantErr: "generate_per_minute"},
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
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateKafka(t *testing.T) {
	cfg := Config{Kafka: KafkaConfig{Topic: "t", GroupID: "g"}}
	assert.Error(t, cfg.ValidateKafka())
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.ValidateKafka())
}
