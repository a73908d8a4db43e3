package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type SyncConfig struct {
	IntervalDays    int           `envconfig:"INTERVAL_DAYS" default:"7"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
	Concurrency     int           `envconfig:"CONCURRENCY" default:"4"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"0"`
	BalanceCacheTTL time.Duration `envconfig:"BALANCE_CACHE_TTL" default:"0"`
}

type StarlingConfig struct {
	BaseURL           string  `envconfig:"BASE_URL" default:"https://api.starlingbank.com/api/v2"`
	CategoryFile      string  `envconfig:"CATEGORY_FILE"`
	RequestsPerSecond float64 `envconfig:"REQUESTS_PER_SECOND" default:"5"`
	Burst             int     `envconfig:"BURST" default:"5"`
}

type PlaidConfig struct {
	ClientID string `envconfig:"CLIENT_ID"`
	Secret   string `envconfig:"SECRET"`
	Env      string `envconfig:"ENV" default:"sandbox"`
}

// Enabled reports whether Plaid credentials were supplied.
func (p PlaidConfig) Enabled() bool {
	return p.ClientID != "" && p.Secret != ""
}

type Config struct {
	Port               string            `envconfig:"PORT" default:"8080"`
	DatabaseURL        string            `envconfig:"DATABASE_URL"`
	LogLevel           string            `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat          string            `envconfig:"LOG_FORMAT" default:"console"`
	JWTSecret          string            `envconfig:"JWT_SECRET"`
	ReadOnly           bool              `envconfig:"READ_ONLY" default:"false"`
	CORSAllowedOrigins []string          `envconfig:"CORS_ALLOWED_ORIGINS"`
	BankProviders      map[string]string `envconfig:"BANK_PROVIDERS" default:"Starling Personal:starling,Starling Business:starling"`
	Sync               SyncConfig        `envconfig:"SYNC"`
	Starling           StarlingConfig    `envconfig:"STARLING"`
	Plaid              PlaidConfig       `envconfig:"PLAID"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFile ...string) (*Config, error) {
	if len(envFile) > 0 && envFile[0] != "" {
		if err := godotenv.Load(envFile[0]); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile[0], err)
		}
	} else {
		// .env is optional
		_ = godotenv.Load()
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Starling.CategoryFile == "" {
		cfg.Starling.CategoryFile = defaultCategoryFile()
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Sync.IntervalDays <= 0 {
		return fmt.Errorf("SYNC_INTERVAL_DAYS must be positive, got %d", c.Sync.IntervalDays)
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("SYNC_CONCURRENCY must be positive, got %d", c.Sync.Concurrency)
	}
	if c.Sync.ProviderTimeout <= 0 {
		return errors.New("SYNC_PROVIDER_TIMEOUT must be positive")
	}
	switch c.Plaid.Env {
	case "sandbox", "production":
	default:
		return fmt.Errorf("invalid Plaid environment: %s", c.Plaid.Env)
	}
	for bank, kind := range c.BankProviders {
		if strings.TrimSpace(bank) == "" || strings.TrimSpace(kind) == "" {
			return fmt.Errorf("BANK_PROVIDERS entry %q:%q is incomplete", bank, kind)
		}
	}
	return nil
}

func defaultCategoryFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "starling-server", "starling_config.toml")
}
