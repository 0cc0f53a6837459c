package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the status dashboard.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry                 *prometheus.Registry
	NodeUp                   *prometheus.GaugeVec
	CheckAttemptsTotal       *prometheus.CounterVec
	TickDuration             prometheus.Histogram
	UpstreamRequestsTotal    *prometheus.CounterVec
	UpstreamRequestDuration  *prometheus.HistogramVec
	HTTPRequestsTotal        *prometheus.CounterVec
	RateLimitRejectionsTotal prometheus.Counter
	CORSRejectionsTotal      prometheus.Counter
}

// New creates all metrics and registers them on a dedicated registry
// together with the Go runtime and process collectors.
func New() *Collector {
	m := &Collector{
		registry: prometheus.NewRegistry(),
		NodeUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lavalink_status_node_up",
				Help: "Liveness of a node as seen by the monitor (1 online, 0 offline, -1 unknown).",
			},
			[]string{"node"},
		),
		CheckAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lavalink_status_check_attempts_total",
				Help: "Total number of monitor check attempts per node and result.",
			},
			[]string{"node", "result"},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lavalink_status_tick_duration_seconds",
				Help:    "Duration of a full monitor tick across all nodes.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
		),
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lavalink_status_upstream_requests_total",
				Help: "Total number of requests sent to Lavalink nodes.",
			},
			[]string{"node", "endpoint", "result"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lavalink_status_upstream_request_duration_seconds",
				Help:    "Latency of requests sent to Lavalink nodes.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"node", "endpoint"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lavalink_status_http_requests_total",
				Help: "Total number of API requests served.",
			},
			[]string{"method", "status"},
		),
		RateLimitRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lavalink_status_ratelimit_rejections_total",
				Help: "Total number of requests rejected by rate limiting.",
			},
		),
		CORSRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lavalink_status_cors_rejections_total",
				Help: "Total number of requests rejected by the origin allow-list.",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.NodeUp,
		m.CheckAttemptsTotal,
		m.TickDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.HTTPRequestsTotal,
		m.RateLimitRejectionsTotal,
		m.CORSRejectionsTotal,
	)

	return m
}

// SetNodeUp records the liveness gauge for a node.
func (m *Collector) SetNodeUp(node string, value float64) {
	if m == nil {
		return
	}
	m.NodeUp.WithLabelValues(node).Set(value)
}

// IncCheckAttempt counts one monitor attempt.
func (m *Collector) IncCheckAttempt(node string, ok bool) {
	if m == nil {
		return
	}
	m.CheckAttemptsTotal.WithLabelValues(node, result(ok)).Inc()
}

// ObserveTick records the duration of a monitor tick.
func (m *Collector) ObserveTick(seconds float64) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(seconds)
}

// ObserveUpstream records one upstream call.
func (m *Collector) ObserveUpstream(node, endpoint string, seconds float64, ok bool) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(node, endpoint, result(ok)).Inc()
	m.UpstreamRequestDuration.WithLabelValues(node, endpoint).Observe(seconds)
}

// IncHTTPRequest counts a served API request.
func (m *Collector) IncHTTPRequest(method, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, status).Inc()
}

// IncRateLimitRejectionsTotal increments the rate limit rejection counter.
func (m *Collector) IncRateLimitRejectionsTotal() {
	if m == nil {
		return
	}
	m.RateLimitRejectionsTotal.Inc()
}

// IncCORSRejectionsTotal increments the origin rejection counter.
func (m *Collector) IncCORSRejectionsTotal() {
	if m == nil {
		return
	}
	m.CORSRejectionsTotal.Inc()
}

// Handler returns an http.Handler that serves the registered metrics.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
