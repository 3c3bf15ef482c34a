// Package config loads runtime settings from ATOMICKIDS_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"github.com/dukerupert/atomickids/internal/streak"
)

const prefix = "ATOMICKIDS"

type Config struct {
	Port   string `envconfig:"PORT" default:"8080"`
	DBPath string `envconfig:"DB_PATH" default:"atomickids.db"`

	// DatabaseURL selects the Postgres gateway for the reset job when set.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	Timezone string `envconfig:"TIMEZONE" default:"Australia/Sydney"`

	ResetSchedule    string `envconfig:"RESET_SCHEDULE" default:"0 0 * * *"`
	ResetEnabled     bool   `envconfig:"RESET_ENABLED" default:"true"`
	ResetCloses      string `envconfig:"RESET_CLOSES" default:"previous"`
	ResetConcurrency int    `envconfig:"RESET_CONCURRENCY" default:"4"`
	EmptyTasks       string `envconfig:"EMPTY_TASKS" default:"reset"`
	Uncomplete       string `envconfig:"UNCOMPLETE" default:"keep"`

	JobTokenHash     string        `envconfig:"JOB_TOKEN_HASH"`
	JobRateLimit     int           `envconfig:"JOB_RATE_LIMIT" default:"6"`
	JobRateWindow    time.Duration `envconfig:"JOB_RATE_WINDOW" default:"1m"`
	TrustProxy       bool          `envconfig:"TRUST_PROXY" default:"false"`
	CatalogPath      string        `envconfig:"CATALOG_PATH"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedWSOrigins []string      `envconfig:"WS_ORIGINS"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%s_TIMEZONE: %w", prefix, err)
	}
	if _, err := cron.ParseStandard(c.ResetSchedule); err != nil {
		return fmt.Errorf("%s_RESET_SCHEDULE: %w", prefix, err)
	}
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	if c.ResetConcurrency <= 0 {
		return fmt.Errorf("%s_RESET_CONCURRENCY must be > 0", prefix)
	}
	if c.JobRateLimit <= 0 || c.JobRateWindow <= 0 {
		return fmt.Errorf("%s_JOB_RATE_LIMIT and %s_JOB_RATE_WINDOW must be > 0", prefix, prefix)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%s_LOG_FORMAT must be text or json, got %q", prefix, c.LogFormat)
	}
	return nil
}

// Policy is the streak policy the environment selects.
func (c *Config) Policy() streak.Policy {
	return streak.Policy{
		EmptyTasks: streak.EmptyTasks(strings.ToLower(c.EmptyTasks)),
		Uncomplete: streak.Uncomplete(strings.ToLower(c.Uncomplete)),
		Close:      streak.Close(strings.ToLower(c.ResetCloses)),
	}
}

// LogValue keeps secrets out of the startup log line.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("port", c.Port),
		slog.String("db_path", c.DBPath),
		slog.Bool("postgres", c.DatabaseURL != ""),
		slog.String("timezone", c.Timezone),
		slog.String("reset_schedule", c.ResetSchedule),
		slog.Bool("reset_enabled", c.ResetEnabled),
		slog.String("reset_closes", c.ResetCloses),
		slog.String("empty_tasks", c.EmptyTasks),
		slog.String("uncomplete", c.Uncomplete),
		slog.Bool("job_trigger", c.JobTokenHash != ""),
		slog.Bool("trust_proxy", c.TrustProxy),
	)
}
