package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ModeDirect persists envelopes straight from the accepting instance.
	ModeDirect = "direct"
	// ModeDurable appends envelopes to the durable log before persistence.
	ModeDurable = "durable"
)

type Env struct {
	ListenAddr     string        `envconfig:"LISTEN_ADDR" default:"localhost:8000"`
	DatabaseDSN    string        `envconfig:"DATABASE_DSN"`
	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	NatsURL        string        `envconfig:"NATS_URL"`
	Topic          string        `envconfig:"TOPIC" default:"MESSAGES"`
	ConsumerGroup  string        `envconfig:"CONSUMER_GROUP" default:"default"`
	RelayMode      string        `envconfig:"RELAY_MODE" default:"direct"`
	SigningKey     string        `envconfig:"SIGNING_KEY"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`
	RetryBackoff   time.Duration `envconfig:"RETRY_BACKOFF" default:"5s"`
	MaxDeliver     int           `envconfig:"MAX_DELIVER" default:"5"`
}

type Config struct {
	ListenAddr     string
	DatabaseDSN    string
	RedisAddr      string
	RedisPassword  string
	NatsURL        string
	Topic          string
	ConsumerGroup  string
	RelayMode      string
	SigningKey     []byte
	AllowedOrigins []string
	RetryBackoff   time.Duration
	MaxDeliver     int
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

// FromEnv reads configuration from the process environment and validates it.
func FromEnv() (*Config, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	return NewConfig(env)
}

func NewConfig(env Env) (*Config, error) {
	if env.ListenAddr == "" {
		return nil, fmt.Errorf("listen address cannot be empty")
	}
	if env.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if env.SigningKey == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if env.Topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	switch env.RelayMode {
	case ModeDirect:
	case ModeDurable:
		if env.NatsURL == "" {
			return nil, fmt.Errorf("NATS URL cannot be empty in durable mode")
		}
	default:
		return nil, fmt.Errorf("unknown relay mode %q", env.RelayMode)
	}

	if env.RetryBackoff <= 0 {
		return nil, fmt.Errorf("retry backoff must be positive")
	}
	if env.MaxDeliver <= 0 {
		return nil, fmt.Errorf("max deliver must be positive")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(env.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ListenAddr:     env.ListenAddr,
		DatabaseDSN:    env.DatabaseDSN,
		RedisAddr:      env.RedisAddr,
		RedisPassword:  env.RedisPassword,
		NatsURL:        env.NatsURL,
		Topic:          env.Topic,
		ConsumerGroup:  env.ConsumerGroup,
		RelayMode:      env.RelayMode,
		SigningKey:     signingKey,
		AllowedOrigins: env.AllowedOrigins,
		RetryBackoff:   env.RetryBackoff,
		MaxDeliver:     env.MaxDeliver,
	}, nil
}
