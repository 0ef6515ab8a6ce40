// Package config loads, validates, and watches the relay service
// configuration.
//
// Configuration is read from a YAML file, zero-valued fields are filled
// with defaults, and the result is validated before use. Environment
// variables named RELAY_SECTION_FIELD (for example RELAY_AUTH_SECRET or
// RELAY_PROXY_MAX_CONCURRENCY) override file values.
//
// A Watcher can reload the file on change and notify subscribers, which
// lets operational knobs such as the per-client rate limit be adjusted
// without a restart.
package config
