package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dgenlabs/relay/pkg/telemetry/store"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain telemetry.
	// Zero or negative means keep telemetry forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM).
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner enforces the retention window on recorded telemetry: primary
// store rows and fallback day files older than the window are removed.
type Pruner struct {
	store  *store.Store
	config *Config
	logger *slog.Logger

	// nowFunc is replaced in tests.
	nowFunc func() time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(s *store.Store, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pruner{
		store:   s,
		config:  config,
		logger:  slog.Default().With("component", "telemetry-retention"),
		nowFunc: time.Now,
	}
}

// Prune deletes telemetry older than the retention window. Returns rows
// removed from the primary store and files removed from the fallback
// directory.
func (p *Pruner) Prune(ctx context.Context) (int64, int, error) {
	if p.config.RetentionDays <= 0 {
		return 0, 0, nil
	}

	cutoff := p.nowFunc().UTC().AddDate(0, 0, -p.config.RetentionDays)
	rows, files, err := p.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return rows, files, fmt.Errorf("retention prune failed: %w", err)
	}

	p.logger.Info("pruned telemetry",
		"deleted_rows", rows,
		"deleted_files", files,
		"retention_days", p.config.RetentionDays,
		"cutoff", cutoff.Format(time.RFC3339),
	)
	return rows, files, nil
}
