package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth  AuthConfig
	Mongo MongoConfig
	Redis RedisConfig
}

type AuthConfig struct {
	// SessionLifetime bounds every minted session token.
	SessionLifetime time.Duration `env:"SESSION_LIFETIME, default=720h"`
	// GuestGroupID is the reserved account group backing guests.
	GuestGroupID int64 `env:"GUEST_GROUP_ID, default=1"`
	// ProvisionGroupID is assigned to newly mirrored accounts.
	ProvisionGroupID int64 `env:"PROVISION_GROUP_ID, default=3"`

	RequireEmailVerification bool          `env:"REQUIRE_EMAIL_VERIFICATION, default=false"`
	ActivationSecret         string        `env:"ACTIVATION_SECRET"`
	ActivationTTL            time.Duration `env:"ACTIVATION_TTL, default=48h"`
}

type MongoConfig struct {
	URI string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	// Database holds the portal's own collections (accounts, groups,
	// permission keys); RealmDatabase is the external account authority.
	Database      string `env:"MONGO_DB,       default=account_gateway"`
	RealmDatabase string `env:"REALM_MONGO_DB, default=realm"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
