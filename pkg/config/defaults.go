package config

import "time"

// DefaultConfig returns a fully populated configuration with defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults. It is idempotent.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Long enough for a full retry cycle against a slow downstream.
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	if cfg.Auth.DefaultSOEID == "" {
		cfg.Auth.DefaultSOEID = "anonymous"
	}
	if cfg.Auth.DefaultProject == "" {
		cfg.Auth.DefaultProject = "default"
	}

	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8081"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 90 * time.Second
	}

	if cfg.Proxy.MaxConcurrency == 0 {
		cfg.Proxy.MaxConcurrency = 500
	}
	if cfg.Proxy.RetryAttempts == 0 {
		cfg.Proxy.RetryAttempts = 3
	}
	if cfg.Proxy.AttemptTimeout == 0 {
		cfg.Proxy.AttemptTimeout = 60 * time.Second
	}
	if cfg.Proxy.MaxPromptChars == 0 {
		cfg.Proxy.MaxPromptChars = 50000
	}
	if cfg.Proxy.DefaultTarget == "" {
		cfg.Proxy.DefaultTarget = "models/default"
	}

	if cfg.Limits.RequestsPerMinute == 0 {
		cfg.Limits.RequestsPerMinute = 120
	}

	if cfg.Telemetry.Backend == "" {
		cfg.Telemetry.Backend = "sqlite"
	}
	if cfg.Telemetry.SQLitePath == "" {
		cfg.Telemetry.SQLitePath = "data/telemetry.db"
	}
	if cfg.Telemetry.FallbackDir == "" {
		cfg.Telemetry.FallbackDir = "data/fallback"
	}
	if cfg.Telemetry.ConnectAttempts == 0 {
		cfg.Telemetry.ConnectAttempts = 3
	}
	if cfg.Telemetry.ConnectDelay == 0 {
		cfg.Telemetry.ConnectDelay = 2 * time.Second
	}
	if cfg.Telemetry.ConnectTimeout == 0 {
		cfg.Telemetry.ConnectTimeout = 5 * time.Second
	}
	if cfg.Telemetry.MetricsCacheTTL == 0 {
		cfg.Telemetry.MetricsCacheTTL = 5 * time.Minute
	}
	if cfg.Telemetry.MetricsNamespace == "" {
		cfg.Telemetry.MetricsNamespace = "relay"
	}
	if cfg.Telemetry.RetentionDays == 0 {
		cfg.Telemetry.RetentionDays = 90
	}
	if cfg.Telemetry.PruneSchedule == "" {
		cfg.Telemetry.PruneSchedule = "0 3 * * *"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
