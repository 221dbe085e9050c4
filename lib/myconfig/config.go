package myconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	GoogleCloudProject string        `envconfig:"GOOGLE_CLOUD_PROJECT"`
	DatabaseDSN        string        `envconfig:"DATABASE_DSN"`
	RedisAddress       string        `envconfig:"REDIS_ADDRESS"`
	RedisPassword      string        `envconfig:"REDIS_PASSWORD"`
	LockTTL            time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	StripeWebhookKey   string        `envconfig:"STRIPE_WEBHOOK_SECRET"`
	EventsPlugin       bool          `envconfig:"EVENTS_PLUGIN" default:"true"`
	SeedCatalog        bool          `envconfig:"SEED_CATALOG" default:"true"`
}

func (c Config) IsGoogleCloud() bool {
	return c.GoogleCloudProject != ""
}

// Load reads an optional .env file (existing environment variables win) and
// fills Config from the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.LockTTL <= 0 {
		return Config{}, fmt.Errorf("LOCK_TTL must be positive, got %s", cfg.LockTTL)
	}
	return cfg, nil
}
