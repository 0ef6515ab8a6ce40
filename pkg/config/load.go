package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention RELAY_SECTION_FIELD (e.g. RELAY_SERVER_LISTEN_ADDRESS) and
// always take precedence over file values.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("RELAY_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}

	if val := os.Getenv("RELAY_AUTH_SECRET"); val != "" {
		cfg.Auth.Secret = val
	}
	if val := os.Getenv("RELAY_AUTH_SECRET_DIR"); val != "" {
		cfg.Auth.SecretDir = val
	}
	if val := os.Getenv("RELAY_AUTH_ALLOW_DEFAULT_TOKEN"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Auth.AllowDefaultToken = b
		}
	}

	if val := os.Getenv("RELAY_BACKEND_BASE_URL"); val != "" {
		cfg.Backend.BaseURL = val
	}
	if val := os.Getenv("RELAY_BACKEND_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Backend.Timeout = d
		}
	}

	if val := os.Getenv("RELAY_PROXY_MAX_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Proxy.MaxConcurrency = n
		}
	}
	if val := os.Getenv("RELAY_PROXY_RETRY_ATTEMPTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Proxy.RetryAttempts = n
		}
	}
	if val := os.Getenv("RELAY_PROXY_ATTEMPT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Proxy.AttemptTimeout = d
		}
	}
	if val := os.Getenv("RELAY_PROXY_DEFAULT_TARGET"); val != "" {
		cfg.Proxy.DefaultTarget = val
	}

	if val := os.Getenv("RELAY_LIMITS_REQUESTS_PER_MINUTE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Limits.RequestsPerMinute = n
		}
	}
	if val := os.Getenv("RELAY_LIMITS_USAGE_DB_PATH"); val != "" {
		cfg.Limits.UsageDBPath = val
	}

	if val := os.Getenv("RELAY_TELEMETRY_BACKEND"); val != "" {
		cfg.Telemetry.Backend = val
	}
	if val := os.Getenv("RELAY_TELEMETRY_SQLITE_PATH"); val != "" {
		cfg.Telemetry.SQLitePath = val
	}
	if val := os.Getenv("RELAY_TELEMETRY_POSTGRES_DSN"); val != "" {
		cfg.Telemetry.PostgresDSN = val
	}
	if val := os.Getenv("RELAY_TELEMETRY_FALLBACK_DIR"); val != "" {
		cfg.Telemetry.FallbackDir = val
	}
	if val := os.Getenv("RELAY_TELEMETRY_METRICS_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Telemetry.MetricsCacheTTL = d
		}
	}
	if val := os.Getenv("RELAY_TELEMETRY_RETENTION_DAYS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Telemetry.RetentionDays = n
		}
	}

	if val := os.Getenv("RELAY_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("RELAY_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
}
