package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type string `envconfig:"ENRICHER_DB_TYPE" default:"memory"`
	Name string `envconfig:"ENRICHER_DB_NAME" default:"enricher.db"`
}

type svcConfig struct {
	LogLevel         string        `envconfig:"ENRICHER_LOG_LEVEL" default:"info"`
	MaxBatch         int           `envconfig:"ENRICHER_MAX_BATCH" default:"100"`
	BreakerThreshold int           `envconfig:"ENRICHER_BREAKER_THRESHOLD" default:"5"`
	BreakerTimeout   time.Duration `envconfig:"ENRICHER_BREAKER_TIMEOUT" default:"60s"`
	CacheTTL         time.Duration `envconfig:"ENRICHER_CACHE_TTL" default:"3600s"`
	AdapterTimeout   time.Duration `envconfig:"ENRICHER_ADAPTER_TIMEOUT" default:"10s"`
	RateWindow       time.Duration `envconfig:"ENRICHER_RATE_WINDOW" default:"60s"`
	// RateOverrides replaces a source's max requests per window, e.g.
	// "nvd:50,reputation:500" for authenticated access.
	RateOverrides map[string]int `envconfig:"ENRICHER_RATE_OVERRIDES"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns the built-in defaults without touching the process
// environment.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{Type: "memory", Name: "enricher.db"},
		Service: &svcConfig{
			LogLevel:         "info",
			MaxBatch:         100,
			BreakerThreshold: 5,
			BreakerTimeout:   60 * time.Second,
			CacheTTL:         time.Hour,
			AdapterTimeout:   10 * time.Second,
			RateWindow:       time.Minute,
		},
	}
}
