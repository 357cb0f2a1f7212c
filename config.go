package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the runtime configuration, loaded from the environment after the
// optional .env file has been applied
type Config struct {
	Addr        string   `envconfig:"ADDR" default:":8080"`
	DatabaseURL string   `envconfig:"DB_URL" required:"true"`
	CorsOrigins []string `envconfig:"CORS_ALLOW_ORIGINS"`
	TokenSecret string   `envconfig:"AUTH_TOKEN_SECRET" required:"true"`

	// RetentionDays is the single retention policy shared by message
	// retrieval and the retention sweep
	RetentionDays int `envconfig:"RETENTION_DAYS" default:"30"`

	EmptyGroupSweepInterval time.Duration `envconfig:"EMPTY_GROUP_SWEEP_INTERVAL" default:"1h"`
	RetentionSweepInterval  time.Duration `envconfig:"RETENTION_SWEEP_INTERVAL" default:"24h"`
}

// LoadConfig reads the configuration from the environment
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RetentionHorizon converts the configured retention policy to a duration
func (c *Config) RetentionHorizon() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
