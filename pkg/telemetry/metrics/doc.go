// Package metrics exposes Prometheus counters and histograms for the
// request path on a private registry.
package metrics
