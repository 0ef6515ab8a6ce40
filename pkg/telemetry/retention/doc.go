// Package retention prunes telemetry past its retention window, on demand
// or on a cron schedule.
package retention
