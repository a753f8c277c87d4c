// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the server's Prometheus metrics.
type Collector struct {
	httpRequests     *prometheus.CounterVec
	githubCalls      *prometheus.CounterVec
	resolverAttempts *prometheus.CounterVec
	requestDuration  prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gitsmart_http_requests_total",
			Help: "HTTP requests handled, by route pattern and status code.",
		}, []string{"path", "status"}),
		githubCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gitsmart_github_calls_total",
			Help: "Outbound GitHub API calls, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		resolverAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gitsmart_resolver_attempts_total",
			Help: "File-resolution fetch attempts, by method (api or raw).",
		}, []string{"method"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gitsmart_request_duration_seconds",
			Help:    "Inbound request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(c.httpRequests, c.githubCalls, c.resolverAttempts, c.requestDuration)
	return c
}

func (c *Collector) RecordRequest(path string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	c.requestDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordGitHubCall(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.githubCalls.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) RecordResolverAttempt(method string) {
	c.resolverAttempts.WithLabelValues(method).Inc()
}

// Handler returns the scrape handler for /metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
