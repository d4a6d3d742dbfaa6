package app

import (
	"fmt"
	"time"

	"github.com/bdobrica/Primus/common/environment"
	"github.com/bdobrica/Primus/common/spec/profile"
	"github.com/bdobrica/Primus/internal/primus/llm"
)

// Environment variables read by LoadConfig.
const (
	EnvDBPath           = "PRIMUS_DB_PATH"
	EnvHTTPAddr         = "PRIMUS_HTTP_ADDR"
	EnvProfile          = "PRIMUS_PROFILE"
	EnvLLMAPIKey        = "PRIMUS_LLM_API_KEY"
	EnvLLMBaseURL       = "PRIMUS_LLM_BASE_URL"
	EnvLLMModel         = "PRIMUS_LLM_MODEL"
	EnvAutonomyEnabled  = "PRIMUS_AUTONOMY_ENABLED"
	EnvAutonomyInterval = "PRIMUS_AUTONOMY_INTERVAL"
	EnvAutonomyCooldown = "PRIMUS_AUTONOMY_COOLDOWN"
	EnvIdleThreshold    = "PRIMUS_IDLE_THRESHOLD"
	EnvLogLevel         = "PRIMUS_LOG_LEVEL"
	EnvLogFormat        = "PRIMUS_LOG_FORMAT"
)

// DefaultDBPath is used when PRIMUS_DB_PATH is unset.
const DefaultDBPath = "./primus.db"

// Config holds application configuration.
type Config struct {
	DatabasePath string
	// HTTPAddr is the address of the optional health/status server
	// (e.g. ":8080"). Empty disables it.
	HTTPAddr string

	LLM llm.Config

	// Profile carries the engine tuning. Autonomy pacing in it has already
	// been overridden from the environment.
	Profile *profile.Profile

	LogLevel  string
	LogFormat string

	// SleepInterval is how often the nightly consolidation is attempted.
	SleepInterval time.Duration
}

// LoadConfig reads the environment and the optional profile it names.
func LoadConfig() (*Config, error) {
	p, err := profile.Load(environment.StringOr(EnvProfile, ""))
	if err != nil {
		return nil, err
	}

	p.Autonomy.Enabled = environment.BoolOr(EnvAutonomyEnabled, p.Autonomy.Enabled)
	p.Autonomy.Interval = environment.DurationOr(EnvAutonomyInterval, p.Autonomy.Interval)
	p.Autonomy.Cooldown = environment.DurationOr(EnvAutonomyCooldown, p.Autonomy.Cooldown)
	p.Autonomy.IdleThreshold = environment.DurationOr(EnvIdleThreshold, p.Autonomy.IdleThreshold)
	if err := profile.Validate(p); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &Config{
		DatabasePath: environment.StringOr(EnvDBPath, DefaultDBPath),
		HTTPAddr:     environment.StringOr(EnvHTTPAddr, ""),
		LLM: llm.Config{
			APIKey:            environment.StringOr(EnvLLMAPIKey, ""),
			BaseURL:           environment.StringOr(EnvLLMBaseURL, ""),
			Model:             environment.StringOr(EnvLLMModel, ""),
			RequestsPerMinute: p.LLM.RequestsPerMinute,
		},
		Profile:       p,
		LogLevel:      environment.StringOr(EnvLogLevel, "info"),
		LogFormat:     environment.StringOr(EnvLogFormat, "text"),
		SleepInterval: time.Hour,
	}, nil
}
