package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds settings read from the environment.
type EnvConfig struct {
	LogLevel  string `env:"ALPC_TRACE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ALPC_TRACE_LOG_FORMAT" envDefault:"console"`
}

// ParseEnvConfig parses the ALPC_TRACE_* environment variables.
func ParseEnvConfig() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return nil, fmt.Errorf("invalid ALPC_TRACE_LOG_FORMAT %q (want console or json)", cfg.LogFormat)
	}
	return &cfg, nil
}
