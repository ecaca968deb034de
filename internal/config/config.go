package config

import (
	"fmt"
	"time"

	sharedauth "github.com/M-STRONG/Evently-app/pkg/auth"
	"github.com/M-STRONG/Evently-app/pkg/envconfig"
)

// Supported DATASTORE values.
const (
	DataStoreMemory    = "memory"
	DataStoreMongo     = "mongo"
	DataStoreFirestore = "firestore"
)

type Config struct {
	Port      string `validate:"required"`
	DataStore string `validate:"required,oneof=memory mongo firestore"`
	Mongo     MongoConfig
	Firestore FirestoreConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Log       LogConfig
	// UserCacheTTL is zero when the read-through cache is disabled.
	UserCacheTTL time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type FirestoreConfig struct {
	ProjectID    string
	Database     string
	EmulatorHost string
}

type AuthConfig struct {
	Mode          string `validate:"required,oneof=clerk noop"`
	JWKSURL       string
	Audience      string
	Issuer        string
	WebhookSecret string
}

// RedisConfig is optional; an empty Addr disables events, revalidation and caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
}

type LogConfig struct {
	Level  string
	Format string `validate:"omitempty,oneof=json text"`
}

func Load() (Config, error) {
	redisDB, err := envconfig.GetInt("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := envconfig.GetDuration("USER_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:      envconfig.Get("PORT", "8080"),
		DataStore: envconfig.Get("DATASTORE", DataStoreMongo),
		Mongo: MongoConfig{
			URI:      envconfig.Get("MONGODB_URI", ""),
			Database: envconfig.Get("MONGODB_DATABASE", "evently"),
		},
		Firestore: FirestoreConfig{
			ProjectID:    envconfig.Get("GCP_PROJECT_ID", ""),
			Database:     envconfig.Get("FIRESTORE_DATABASE", ""),
			EmulatorHost: envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
		},
		Auth: AuthConfig{
			Mode:          envconfig.Get("AUTH_MODE", string(sharedauth.ModeClerk)),
			JWKSURL:       envconfig.Get("CLERK_JWKS_URL", ""),
			Audience:      envconfig.Get("CLERK_AUDIENCE", ""),
			Issuer:        envconfig.Get("CLERK_ISSUER", ""),
			WebhookSecret: envconfig.Get("CLERK_WEBHOOK_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:     envconfig.Get("REDIS_ADDR", ""),
			Password: envconfig.Get("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Log: LogConfig{
			Level:  envconfig.Get("LOG_LEVEL", "info"),
			Format: envconfig.Get("LOG_FORMAT", "json"),
		},
		UserCacheTTL: cacheTTL,
	}
	if cfg.UserCacheTTL < 0 {
		cfg.UserCacheTTL = 0
	}

	if err := envconfig.Validate(cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// check enforces the settings each mode depends on.
func (c Config) check() error {
	switch c.DataStore {
	case DataStoreMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGODB_URI is required when DATASTORE=%s", DataStoreMongo)
		}
	case DataStoreFirestore:
		if c.Firestore.ProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required when DATASTORE=%s", DataStoreFirestore)
		}
	}
	if c.Auth.Mode == string(sharedauth.ModeClerk) && c.Auth.JWKSURL == "" {
		return fmt.Errorf("CLERK_JWKS_URL is required when AUTH_MODE=%s", sharedauth.ModeClerk)
	}
	return nil
}
