// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/abhisek/mentalmath/internal/llm"
)

// Prefix is prepended to every environment variable name.
const Prefix = "MENTALMATH_"

// Config holds all application configuration.
type Config struct {
	DBPath    string `env:"DB_PATH"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"pretty"`

	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":8000"`
	GinMode        string   `env:"GIN_MODE" envDefault:"release"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// RedisURL enables the mastery cache when set.
	RedisURL        string        `env:"REDIS_URL"`
	MasteryCacheTTL time.Duration `env:"MASTERY_CACHE_TTL" envDefault:"10m"`

	AttemptLogTimeout time.Duration `env:"ATTEMPT_LOG_TIMEOUT" envDefault:"2s"`
	CandidateTimeout  time.Duration `env:"CANDIDATE_TIMEOUT" envDefault:"2s"`
	CandidateLimit    int           `env:"CANDIDATE_LIMIT" envDefault:"50"`
	TextTimeout       time.Duration `env:"TEXT_TIMEOUT" envDefault:"3s"`
	SummaryTimeout    time.Duration `env:"SUMMARY_TIMEOUT" envDefault:"5s"`
	MaxTokens         int           `env:"MAX_TOKENS" envDefault:"80"`

	// DefaultBudget is the session time budget in seconds when a start
	// request omits one. Zero means unbounded.
	DefaultBudget float64 `env:"DEFAULT_BUDGET" envDefault:"0"`

	LLM llm.Config `envPrefix:"LLM_"`
}

// Load reads an optional .env file and parses the environment.
func Load(dotenv ...string) (*Config, error) {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LLM.Discover()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that env tags cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "json", "pretty":
	default:
		return fmt.Errorf("%sLOG_FORMAT must be json or pretty, got %q", Prefix, c.LogFormat)
	}
	if c.CandidateLimit < 1 {
		return fmt.Errorf("%sCANDIDATE_LIMIT must be positive, got %d", Prefix, c.CandidateLimit)
	}
	if c.DefaultBudget < 0 {
		return fmt.Errorf("%sDEFAULT_BUDGET must not be negative, got %v", Prefix, c.DefaultBudget)
	}
	for name, d := range map[string]time.Duration{
		"ATTEMPT_LOG_TIMEOUT": c.AttemptLogTimeout,
		"CANDIDATE_TIMEOUT":   c.CandidateTimeout,
		"TEXT_TIMEOUT":        c.TextTimeout,
		"SUMMARY_TIMEOUT":     c.SummaryTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s%s must be positive, got %s", Prefix, name, d)
		}
	}
	return c.LLM.Validate()
}
