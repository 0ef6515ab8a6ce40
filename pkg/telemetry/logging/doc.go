// Package logging configures the process-wide structured logger.
//
// The relay logs through log/slog. Setup installs a JSON or text handler
// as the slog default; packages then call slog.Default().With("component",
// name) to get a scoped logger.
package logging
