package config

import "time"

// Config is the root configuration for the relay service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Backend   BackendConfig   `yaml:"backend"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Limits    LimitsConfig    `yaml:"limits"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// ListenAddress is the host:port the server binds to.
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out a response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive timeout for idle connections.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins configures CORS. ["*"] allows all origins.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuthConfig configures token authentication.
type AuthConfig struct {
	// Secret is the HS256 signing secret. Set it via the
	// RELAY_AUTH_SECRET environment variable in production, or mount it
	// under SecretDir.
	Secret string `yaml:"secret"`

	// SecretDir is a directory of mounted secret files. The signing
	// secret is read from the "auth-secret" file when Secret is empty.
	SecretDir string `yaml:"secret_dir"`

	// AllowDefaultToken admits tokenless requests under the default
	// identity. Development only.
	AllowDefaultToken bool `yaml:"allow_default_token"`

	// DefaultSOEID and DefaultProject name the default identity.
	DefaultSOEID   string `yaml:"default_soeid"`
	DefaultProject string `yaml:"default_project"`
}

// BackendConfig configures the downstream model service.
type BackendConfig struct {
	// BaseURL is the downstream service root.
	BaseURL string `yaml:"base_url"`

	// Timeout is the client-level backstop on one downstream call.
	Timeout time.Duration `yaml:"timeout"`
}

// ProxyConfig configures request admission and retries.
type ProxyConfig struct {
	// MaxConcurrency is the admission ceiling.
	MaxConcurrency int `yaml:"max_concurrency"`

	// RetryAttempts is the total downstream calls per request.
	RetryAttempts int `yaml:"retry_attempts"`

	// AttemptTimeout bounds each downstream call.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// MaxPromptChars rejects oversized prompts.
	MaxPromptChars int `yaml:"max_prompt_chars"`

	// DefaultTarget is the downstream route used when the request
	// does not name one.
	DefaultTarget string `yaml:"default_target"`
}

// LimitsConfig configures per-client rate limiting.
type LimitsConfig struct {
	// RequestsPerMinute is the fixed-window cap per client.
	// Zero or negative disables the gate.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// UsageDBPath is the SQLite file for admission accounting.
	// Empty disables accounting.
	UsageDBPath string `yaml:"usage_db_path"`
}

// TelemetryConfig configures event storage and aggregates.
type TelemetryConfig struct {
	// Backend selects the primary store: "sqlite", "postgres", "memory".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// FallbackDir holds the CSV day files used when the primary is
	// unreachable.
	FallbackDir string `yaml:"fallback_dir"`

	// ConnectAttempts, ConnectDelay, and ConnectTimeout control startup
	// connection probing before the store gives up on the primary.
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectDelay    time.Duration `yaml:"connect_delay"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`

	// MetricsCacheTTL is how long aggregate snapshots stay fresh.
	MetricsCacheTTL time.Duration `yaml:"metrics_cache_ttl"`

	// MetricsNamespace prefixes Prometheus metric names.
	MetricsNamespace string `yaml:"metrics_namespace"`

	// RetentionDays is the telemetry retention window. Negative keeps
	// everything.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for scheduled pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}
