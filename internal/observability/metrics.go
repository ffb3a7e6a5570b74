package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API surface and the
// reconciliation engine.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	pollsTotal           *prometheus.CounterVec
	eventsInsertedTotal  prometheus.Counter
	statusTransitions    *prometheus.CounterVec
	workerInflight       prometheus.Gauge
	cycleDuration        *prometheus.HistogramVec
	shipmentsDueSelected *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nfe_tracker",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nfe_tracker",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		pollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nfe_tracker",
				Name:      "polls_total",
				Help:      "Total number of tracking API polls grouped by outcome.",
			},
			[]string{"outcome"},
		),
		eventsInsertedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "nfe_tracker",
				Name:      "events_inserted_total",
				Help:      "Total number of new tracking events persisted.",
			},
		),
		statusTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nfe_tracker",
				Name:      "status_transitions_total",
				Help:      "Total number of shipment status transitions.",
			},
			[]string{"from", "to"},
		),
		workerInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "nfe_tracker",
				Name:      "worker_inflight",
				Help:      "Current number of shipments being reconciled.",
			},
		),
		cycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nfe_tracker",
				Name:      "cycle_duration_seconds",
				Help:      "Reconciliation cycle duration in seconds grouped by tier.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"tier"},
		),
		shipmentsDueSelected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nfe_tracker",
				Name:      "shipments_due_selected_total",
				Help:      "Total number of shipments selected as due grouped by tier.",
			},
			[]string{"tier"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.pollsTotal,
		m.eventsInsertedTotal,
		m.statusTransitions,
		m.workerInflight,
		m.cycleDuration,
		m.shipmentsDueSelected,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncPoll(outcome string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(outcome))
	if label == "" {
		label = "unknown"
	}
	m.pollsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) AddEventsInserted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsInsertedTotal.Add(float64(n))
}

func (m *Metrics) IncStatusTransition(from string, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(normalizeStatusLabel(from), normalizeStatusLabel(to)).Inc()
}

func (m *Metrics) IncWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Inc()
}

func (m *Metrics) DecWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Dec()
}

func (m *Metrics) ObserveCycleDuration(tier string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.cycleDuration.WithLabelValues(normalizeTier(tier)).Observe(seconds)
}

func (m *Metrics) AddDueSelected(tier string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.shipmentsDueSelected.WithLabelValues(normalizeTier(tier)).Add(float64(n))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeStatusLabel(status string) string {
	normalized := strings.ToUpper(strings.TrimSpace(status))
	if normalized == "" {
		return "NONE"
	}
	return normalized
}

func normalizeTier(tier string) string {
	normalized := strings.ToLower(strings.TrimSpace(tier))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
