package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis (optional duplicate-check cache)
	Redis RedisConfig `mapstructure:"redis"`

	// EventStreams consumer
	Stream StreamConfig `mapstructure:"stream"`

	// MediaWiki media enrichment
	Enricher EnricherConfig `mapstructure:"enricher"`

	// Read API / ops HTTP server
	HTTP HTTPConfig `mapstructure:"http"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// KeyTTL bounds how long seen (hashtag, rc_id) keys stay cached.
	KeyTTL time.Duration `mapstructure:"key_ttl"`
}

type StreamConfig struct {
	// URL is the recentchange SSE endpoint.
	URL string `mapstructure:"url"`
	// RetryDelay is the fixed pause between reconnect attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// MaxRetries bounds consecutive reconnect attempts before the
	// process exits non-zero.
	MaxRetries int `mapstructure:"max_retries"`
	// ConnectTimeout applies to socket connection establishment.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// ReadTimeout detects a silently-dead connection instead of
	// hanging on it indefinitely.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type EnricherConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Timeout bounds each MediaWiki API call so a slow lookup cannot
	// stall the consumer.
	Timeout time.Duration `mapstructure:"timeout"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stream.url", "https://stream.wikimedia.org/v2/stream/recentchange")
	// The stream server replays history on reconnect, so a long pause
	// between attempts loses nothing.
	v.SetDefault("stream.retry_delay", 5*time.Minute)
	v.SetDefault("stream.max_retries", 3)
	v.SetDefault("stream.connect_timeout", 5*time.Second)
	v.SetDefault("stream.read_timeout", 30*time.Second)

	v.SetDefault("enricher.enabled", true)
	v.SetDefault("enricher.timeout", 30*time.Second)

	v.SetDefault("redis.enabled", false)
	// EventStreams keeps at most ~30 days of history, so cached keys
	// older than the replay horizon can never be re-delivered.
	v.SetDefault("redis.key_ttl", 45*24*time.Hour)

	v.SetDefault("http.port", 8080)
	v.SetDefault("prometheus.port", 9090)
}

func bindEnvVars(v *viper.Viper) {
	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// Stream
	v.BindEnv("stream.url", "STREAM_URL")
	v.BindEnv("stream.retry_delay", "STREAM_RETRY_DELAY")
	v.BindEnv("stream.max_retries", "STREAM_MAX_RETRIES")

	// Enricher
	v.BindEnv("enricher.enabled", "ENRICHER_ENABLED")

	// HTTP
	v.BindEnv("http.port", "HTTP_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
}
