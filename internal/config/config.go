package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Store      StoreConfig      `mapstructure:"store"`
	Supabase   SupabaseConfig   `mapstructure:"supabase"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Generative GenerativeConfig `mapstructure:"generative"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Env            string   `mapstructure:"env"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects where activities and challenges live.
// memory is an in-process SQLite database; supabase reads activities
// through PostgREST and keeps challenges in Postgres at DSN.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// SupabaseConfig holds Supabase-specific configuration
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

type CacheConfig struct {
	Backend   string `mapstructure:"backend"`
	RedisURL  string `mapstructure:"redis_url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// GenerativeConfig configures the optional text generation provider
type GenerativeConfig struct {
	Provider            string        `mapstructure:"provider"`
	Model               string        `mapstructure:"model"`
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	Region              string        `mapstructure:"region"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxTokens           int           `mapstructure:"max_tokens"`
	Temperature         float64       `mapstructure:"temperature"`
	BreakerMaxFailures  int           `mapstructure:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `mapstructure:"breaker_reset_timeout"`
}

type AuthConfig struct {
	Mode       string `mapstructure:"mode"`
	UserHeader string `mapstructure:"user_header"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type RateLimitConfig struct {
	GeneratePerMinute int `mapstructure:"generate_per_minute"`
}

// Load reads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("ECOTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Common deployment variables without the prefix
	_ = v.BindEnv("server.port", "ECOTRACK_SERVER_PORT", "PORT")
	_ = v.BindEnv("store.dsn", "ECOTRACK_STORE_DSN", "DATABASE_URL")
	_ = v.BindEnv("cache.redis_url", "ECOTRACK_CACHE_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("generative.api_key", "ECOTRACK_GENERATIVE_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("supabase.url", "ECOTRACK_SUPABASE_URL", "SUPABASE_URL")
	_ = v.BindEnv("supabase.service_key", "ECOTRACK_SUPABASE_SERVICE_KEY", "SUPABASE_SERVICE_KEY")
	_ = v.BindEnv("server.allowed_origins", "ECOTRACK_SERVER_ALLOWED_ORIGINS", "CORS_ALLOWED_ORIGINS")

	// Read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// It's okay if config file doesn't exist
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins)
	config.Kafka.Brokers = splitList(config.Kafka.Brokers)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.service_key", "")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.key_prefix", "ecotrack:insights:")
	v.SetDefault("generative.provider", "disabled")
	v.SetDefault("generative.model", "")
	v.SetDefault("generative.api_key", "")
	v.SetDefault("generative.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("generative.region", "us-east-1")
	v.SetDefault("generative.timeout", 8*time.Second)
	v.SetDefault("generative.max_tokens", 400)
	v.SetDefault("generative.temperature", 0.7)
	v.SetDefault("generative.breaker_max_failures", 5)
	v.SetDefault("generative.breaker_reset_timeout", 30*time.Second)
	v.SetDefault("auth.mode", "header")
	v.SetDefault("auth.user_header", "X-User-ID")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "challenge-checkins")
	v.SetDefault("kafka.group_id", "ecotrack-insights")
	v.SetDefault("ratelimit.generate_per_minute", 10)
}

// splitList accepts both YAML lists and comma-separated env values
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks that the selected drivers have what they need
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	case "supabase":
		if c.Supabase.URL == "" {
			errs = append(errs, errors.New("SUPABASE_URL is required for the supabase store"))
		}
		if c.Supabase.ServiceKey == "" {
			errs = append(errs, errors.New("SUPABASE_SERVICE_KEY is required for the supabase store"))
		}
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for challenge storage with the supabase store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend %q", c.Cache.Backend))
	}

	switch c.Generative.Provider {
	case "disabled", "bedrock":
	case "openrouter":
		if c.Generative.APIKey == "" {
			errs = append(errs, errors.New("OPENROUTER_API_KEY is required for the openrouter provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown generative.provider %q", c.Generative.Provider))
	}
	if c.Generative.Provider != "disabled" && c.Generative.Model == "" {
		errs = append(errs, errors.New("generative.model is required when a provider is enabled"))
	}

	switch c.Auth.Mode {
	case "header":
		if c.Auth.UserHeader == "" {
			errs = append(errs, errors.New("auth.user_header is required in header mode"))
		}
	case "supabase":
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
			errs = append(errs, errors.New("supabase url and service key are required for supabase auth"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth.mode %q", c.Auth.Mode))
	}

	if c.RateLimit.GeneratePerMinute <= 0 {
		errs = append(errs, errors.New("ratelimit.generate_per_minute must be positive"))
	}

	return errors.Join(errs...)
}

// ValidateKafka checks the settings needed by the check-in consumer
func (c *Config) ValidateKafka() error {
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required")
	}
	if c.Kafka.Topic == "" || c.Kafka.GroupID == "" {
		return errors.New("kafka.topic and kafka.group_id are required")
	}
	return nil
}
