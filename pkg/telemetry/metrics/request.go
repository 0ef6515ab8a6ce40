package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestMetrics tracks Prometheus metrics for proxied requests.
//
// Metrics:
//   - relay_requests_total: request count by target, model, status
//   - relay_request_duration_seconds: request duration histogram
//   - relay_request_tokens_total: tokens processed by type
//   - relay_admission_rejections_total: rate-limited requests by client
type RequestMetrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
}

// NewRequestMetrics creates request metrics on a private registry so the
// endpoint never leaks unrelated process collectors from dependencies.
func NewRequestMetrics(namespace string) *RequestMetrics {
	if namespace == "" {
		namespace = "relay"
	}
	rm := &RequestMetrics{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of proxied requests",
			},
			[]string{"target", "model", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied requests in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"target", "model"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "request_tokens_total",
				Help:      "Total number of tokens processed",
			},
			[]string{"target", "model", "type"},
		),

		rejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admission_rejections_total",
				Help:      "Requests rejected by the per-client rate limit",
			},
			[]string{"client"},
		),
	}

	rm.registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.tokensTotal,
		rm.rejectionsTotal,
	)
	return rm
}

// RecordRequest records one completed request.
func (rm *RequestMetrics) RecordRequest(target, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	rm.requestsTotal.WithLabelValues(target, model, status).Inc()
	rm.requestDuration.WithLabelValues(target, model).Observe(duration.Seconds())
	if promptTokens > 0 {
		rm.tokensTotal.WithLabelValues(target, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		rm.tokensTotal.WithLabelValues(target, model, "completion").Add(float64(completionTokens))
	}
}

// RecordRejection records one rate-limited request.
func (rm *RequestMetrics) RecordRejection(client string) {
	rm.rejectionsTotal.WithLabelValues(client).Inc()
}

// Handler serves the private registry in Prometheus exposition format.
func (rm *RequestMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(rm.registry, promhttp.HandlerOpts{})
}
