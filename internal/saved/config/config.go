package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the saved-collection engine.
type Config struct {
	// Social proof
	FollowSampleSize     int `env:"FOLLOW_SAMPLE_SIZE" envDefault:"50"`
	AttributionBatchSize int `env:"ATTRIBUTION_BATCH_SIZE" envDefault:"10"`

	// Write serializer
	WriteQueueSize int           `env:"WRITE_QUEUE_SIZE" envDefault:"64"`
	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT" envDefault:"10s"`

	// MongoDB profile store
	MongoDBURI   string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	DatabaseName string `env:"DATABASE_NAME" envDefault:"placesync"`

	// Redis aggregate feed
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Websocket aggregate feed (alternative to Redis, used when set)
	AggregateFeedURL string `env:"AGGREGATE_FEED_URL" envDefault:""`

	// Session tokens
	SessionSecretKey string `env:"SESSION_SECRET_KEY" envDefault:""`
	SessionIssuer    string `env:"SESSION_ISSUER" envDefault:"placesync-auth"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadConfig loads configuration from the environment, reading a local .env
// file first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load configuration from environment: " + err.Error())
	}

	if cfg.FollowSampleSize <= 0 {
		return nil, errors.New("follow_sample_size must be positive")
	}
	if cfg.AttributionBatchSize <= 0 {
		return nil, errors.New("attribution_batch_size must be positive")
	}
	if cfg.WriteQueueSize <= 0 {
		return nil, errors.New("write_queue_size must be positive")
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}

	return cfg, nil
}
