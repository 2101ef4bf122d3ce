// Package metrics holds the Prometheus collectors for the HTTP surface, the
// GitHub gateway, README aggregation and generation backends.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gh_portfolio"

// Collector owns a private registry so tests can create as many as they
// like without duplicate-registration panics.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	UpstreamCalls       *prometheus.CounterVec
	ReadmeSoftFailures  prometheus.Counter
	Generations         *prometheus.CounterVec
	GenerationDurations *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "github_calls_total",
			Help:      "GitHub API calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		ReadmeSoftFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readme_soft_failures_total",
			Help:      "README fetches downgraded to absent during aggregation",
		}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Portfolio generations by backend and outcome",
		}, []string{"backend", "outcome"}),
		GenerationDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent in the generation backend",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"backend"}),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.UpstreamCalls,
		c.ReadmeSoftFailures,
		c.Generations,
		c.GenerationDurations,
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) ObserveUpstream(endpoint, outcome string) {
	if c == nil {
		return
	}
	c.UpstreamCalls.WithLabelValues(endpoint, outcome).Inc()
}

func (c *Collector) ObserveReadmeSoftFailure() {
	if c == nil {
		return
	}
	c.ReadmeSoftFailures.Inc()
}

func (c *Collector) ObserveGeneration(backend string, success bool, d time.Duration) {
	if c == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.Generations.WithLabelValues(backend, outcome).Inc()
	c.GenerationDurations.WithLabelValues(backend).Observe(d.Seconds())
}
