package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Env string

const (
	EnvProd Env = "prod"
	EnvDev  Env = "dev"
)

func (e Env) IsValid() bool {
	switch e {
	case EnvProd, EnvDev:
		return true
	}
	return false
}

type Config struct {
	APIServerHost string `env:"API_SERVER_HOST" envDefault:"0.0.0.0"`
	APIServerPort string `env:"API_SERVER_PORT" envDefault:"8000"`

	RedisHost          string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort          string `env:"REDIS_PORT" envDefault:"6379"`
	RedisAlertsChannel string `env:"REDIS_ALERTS_CHANNEL" envDefault:"pondwatch:alerts"`

	StorageDir string `env:"STORAGE_DIR" envDefault:"data"`
	MediaDir   string `env:"MEDIA_DIR" envDefault:"data/media"`

	JWTSecret      string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`

	// Liveness tuning for the websocket manager. The defaults match the
	// cadence the PWA clients were built against.
	HeartbeatInterval time.Duration `env:"WS_HEARTBEAT_INTERVAL" envDefault:"30s"`
	CleanupInterval   time.Duration `env:"WS_CLEANUP_INTERVAL" envDefault:"60s"`
	MaxIdle           time.Duration `env:"WS_MAX_IDLE" envDefault:"5m"`

	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `env:"VAPID_SUBSCRIBER" envDefault:"mailto:ops@pondwatch.app"`

	Env Env `env:"ENV" envDefault:"prod"`
}

func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Env.IsValid() {
		return nil, fmt.Errorf("invalid env variable (must be 'prod' or 'dev')")
	}
	return &cfg, nil
}
