package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dgenlabs/relay/pkg/backend"
	"dgenlabs/relay/pkg/config"
	"dgenlabs/relay/pkg/limits/ratelimit"
	"dgenlabs/relay/pkg/limits/storage"
	"dgenlabs/relay/pkg/proxy"
	"dgenlabs/relay/pkg/security/auth"
	"dgenlabs/relay/pkg/security/secrets"
	"dgenlabs/relay/pkg/server"
	"dgenlabs/relay/pkg/telemetry/logging"
	"dgenlabs/relay/pkg/telemetry/metrics"
	"dgenlabs/relay/pkg/telemetry/retention"
	"dgenlabs/relay/pkg/telemetry/store"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay server",
	Long: `Start the relay server with the specified configuration.

The server listens on the configured address, authenticates clients,
enforces per-client rate limits, and proxies prompts to the downstream
model service with bounded retries and telemetry on every request.

Examples:
  # Start with default config
  relay run

  # Start with custom config
  relay run --config /etc/relay/config.yaml

  # Override listen address
  relay run --listen 0.0.0.0:8080

  # Validate config without starting server
  relay run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}

	if _, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Relay v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry store with CSV failover
	primary, err := newTelemetryBackend(cfg)
	if err != nil {
		return err
	}

	fallback, err := store.NewFallbackWriter(cfg.Telemetry.FallbackDir)
	if err != nil {
		return fmt.Errorf("failed to open fallback directory: %w", err)
	}

	telemetryStore := store.New(primary, fallback, store.Config{
		ConnectAttempts: cfg.Telemetry.ConnectAttempts,
		ConnectDelay:    cfg.Telemetry.ConnectDelay,
		ConnectTimeout:  cfg.Telemetry.ConnectTimeout,
		MetricsCacheTTL: cfg.Telemetry.MetricsCacheTTL,
	})
	if err := telemetryStore.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize telemetry store: %w", err)
	}
	defer telemetryStore.Close()
	fmt.Println("✓ Telemetry store initialized")

	_ = telemetryStore.RecordLifecycle(ctx, "startup", "ok", "", map[string]any{
		"version": Version,
		"address": cfg.Server.ListenAddress,
	})
	defer func() {
		_ = telemetryStore.RecordLifecycle(context.Background(), "shutdown", "ok", "", nil)
	}()

	// Retention pruning on a cron schedule
	pruner := retention.NewPruner(telemetryStore, &retention.Config{
		RetentionDays: cfg.Telemetry.RetentionDays,
		PruneSchedule: cfg.Telemetry.PruneSchedule,
	})
	scheduler := retention.NewScheduler(pruner)
	if err := scheduler.Start(ctx); err != nil {
		slog.Warn("failed to start retention scheduler", "error", err)
	} else {
		defer scheduler.Stop()
	}

	// Rate limiting and admission accounting
	limiter := ratelimit.New(cfg.Limits.RequestsPerMinute, ratelimit.DefaultWindow)

	var usage *storage.UsageStore
	if cfg.Limits.UsageDBPath != "" {
		usage, err = storage.NewUsageStore(cfg.Limits.UsageDBPath)
		if err != nil {
			return fmt.Errorf("failed to open usage store: %w", err)
		}
		defer usage.Close()
	}

	// Downstream generator and proxy
	genCfg := backend.DefaultConfig()
	genCfg.BaseURL = cfg.Backend.BaseURL
	genCfg.Timeout = cfg.Backend.Timeout
	gen, err := backend.NewHTTPGenerator(genCfg)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	px := proxy.New(proxy.Config{
		MaxConcurrency: cfg.Proxy.MaxConcurrency,
		RetryAttempts:  cfg.Proxy.RetryAttempts,
		AttemptTimeout: cfg.Proxy.AttemptTimeout,
		MaxPromptChars: cfg.Proxy.MaxPromptChars,
	}, gen, telemetryStore)
	defer px.Close()

	// Token signing (optional in development with allow_default_token)
	secret, err := resolveAuthSecret(ctx, cfg)
	if err != nil {
		return err
	}
	var tokens *auth.TokenManager
	if secret != "" {
		tokens, err = auth.NewTokenManager(secret)
		if err != nil {
			return fmt.Errorf("failed to configure token signing: %w", err)
		}
	}

	// Live reload: rate limit adjustments apply without restart.
	watcher, err := config.NewWatcher(cfgFile)
	if err != nil {
		slog.Warn("config watching disabled", "error", err)
	} else {
		watcher.Subscribe(func(next *config.Config) {
			limiter.SetLimit(next.Limits.RequestsPerMinute)
		})
		watcher.Start()
		defer watcher.Close()
	}

	srv := server.New(server.Options{
		Config:  cfg,
		Version: Version,
		Proxy:   px,
		Store:   telemetryStore,
		Limiter: limiter,
		Usage:   usage,
		Tokens:  tokens,
		Metrics: metrics.NewRequestMetrics(cfg.Telemetry.MetricsNamespace),
	})

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		_ = telemetryStore.RecordLifecycle(context.Background(), "shutdown", "error",
			err.Error(), nil)
		return err
	}

	fmt.Println("✓ Server stopped")
	return nil
}

// resolveAuthSecret returns the signing secret from the config, the
// RELAY_SECRET_AUTH_SECRET environment variable, or the mounted secret
// directory, in that order.
func resolveAuthSecret(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Auth.Secret != "" {
		return cfg.Auth.Secret, nil
	}

	providers := []secrets.Provider{secrets.NewEnvProvider("RELAY_SECRET_")}
	if cfg.Auth.SecretDir != "" {
		fp, err := secrets.NewFileProvider(cfg.Auth.SecretDir)
		if err != nil {
			return "", fmt.Errorf("failed to open secret directory: %w", err)
		}
		providers = append(providers, fp)
	}

	secret, err := secrets.Chain(providers...).Get(ctx, "auth-secret")
	if err != nil {
		if cfg.Auth.AllowDefaultToken {
			return "", nil
		}
		return "", fmt.Errorf("no signing secret available: %w", err)
	}
	return secret, nil
}

func newTelemetryBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.Telemetry.Backend {
	case "sqlite":
		b, err := store.NewSQLiteBackend(cfg.Telemetry.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open telemetry database: %w", err)
		}
		return b, nil
	case "postgres":
		b, err := store.NewPostgresBackend(cfg.Telemetry.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to telemetry database: %w", err)
		}
		return b, nil
	case "memory":
		return store.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported telemetry backend: %s", cfg.Telemetry.Backend)
	}
}
