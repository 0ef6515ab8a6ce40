package config

import (
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for invalid or inconsistent values.
// It assumes defaults have been applied.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address cannot be empty")
	}

	if cfg.Auth.Secret == "" && cfg.Auth.SecretDir == "" && !cfg.Auth.AllowDefaultToken {
		return fmt.Errorf("auth.secret or auth.secret_dir is required unless auth.allow_default_token is set")
	}

	if _, err := url.Parse(cfg.Backend.BaseURL); err != nil {
		return fmt.Errorf("backend.base_url is not a valid URL: %w", err)
	}

	if cfg.Proxy.MaxConcurrency < 1 {
		return fmt.Errorf("proxy.max_concurrency must be at least 1, got %d", cfg.Proxy.MaxConcurrency)
	}
	if cfg.Proxy.RetryAttempts < 1 {
		return fmt.Errorf("proxy.retry_attempts must be at least 1, got %d", cfg.Proxy.RetryAttempts)
	}
	if cfg.Proxy.AttemptTimeout <= 0 {
		return fmt.Errorf("proxy.attempt_timeout must be positive")
	}
	if cfg.Proxy.MaxPromptChars < 1 {
		return fmt.Errorf("proxy.max_prompt_chars must be at least 1, got %d", cfg.Proxy.MaxPromptChars)
	}

	switch cfg.Telemetry.Backend {
	case "sqlite":
		if cfg.Telemetry.SQLitePath == "" {
			return fmt.Errorf("telemetry.sqlite_path is required for the sqlite backend")
		}
	case "postgres":
		if cfg.Telemetry.PostgresDSN == "" {
			return fmt.Errorf("telemetry.postgres_dsn is required for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("telemetry.backend must be sqlite, postgres, or memory, got %q", cfg.Telemetry.Backend)
	}
	if cfg.Telemetry.FallbackDir == "" {
		return fmt.Errorf("telemetry.fallback_dir cannot be empty")
	}
	if cfg.Telemetry.ConnectAttempts < 1 {
		return fmt.Errorf("telemetry.connect_attempts must be at least 1, got %d", cfg.Telemetry.ConnectAttempts)
	}
	if cfg.Telemetry.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Telemetry.PruneSchedule); err != nil {
			return fmt.Errorf("telemetry.prune_schedule is not a valid cron expression: %w", err)
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}

	return nil
}
