// Relay is an authenticated proxy for LLM requests.
//
// It admits requests under a concurrency ceiling, retries failed
// downstream calls with backoff, enforces per-client rate limits, and
// records telemetry for every request with automatic failover to local
// CSV files when the primary store is unreachable.
//
// Usage:
//
//	# Start the server with the default configuration file
//	relay run
//
//	# Start with a custom configuration file
//	relay run --config /etc/relay/config.yaml
//
//	# Validate a configuration file without starting
//	relay validate
//
//	# Issue an API token for a client
//	relay token --soeid ab12345 --project team-a
//
//	# Show version information
//	relay version
package main

func main() {
	Execute()
}
