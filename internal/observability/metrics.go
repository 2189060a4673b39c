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

// Metrics stores Prometheus collectors used by the API, worker, and scheduler.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	deliveriesSentTotal     *prometheus.CounterVec
	deliveriesFailedTotal   *prometheus.CounterVec
	deliveriesExpiredTotal  *prometheus.CounterVec
	sendAttemptDuration     *prometheus.HistogramVec
	deadLetterPublishTotal  prometheus.Counter
	workerInflight          *prometheus.GaugeVec
	campaignTriggeredTotal  prometheus.Counter
	jobsEnqueuedTotal       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notiflow",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notiflow",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		deliveriesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notiflow",
				Name:      "deliveries_sent_total",
				Help:      "Total number of jobs delivered successfully.",
			},
			[]string{"channel"},
		),
		deliveriesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notiflow",
				Name:      "deliveries_failed_total",
				Help:      "Total number of jobs that exhausted all attempts.",
			},
			[]string{"channel"},
		),
		deliveriesExpiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notiflow",
				Name:      "deliveries_expired_total",
				Help:      "Total number of jobs dropped because they expired before sending.",
			},
			[]string{"channel"},
		),
		sendAttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notiflow",
				Name:      "send_attempt_duration_seconds",
				Help:      "Single send attempt duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		deadLetterPublishTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "notiflow",
				Name:      "dead_letter_publish_total",
				Help:      "Total number of exhausted jobs routed to the dead-letter queue.",
			},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "notiflow",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight jobs grouped by channel.",
			},
			[]string{"channel"},
		),
		campaignTriggeredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "notiflow",
				Name:      "campaign_triggered_total",
				Help:      "Total number of campaign trigger transitions applied.",
			},
		),
		jobsEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notiflow",
				Name:      "jobs_enqueued_total",
				Help:      "Total number of notification jobs published to the queue.",
			},
			[]string{"channel"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.deliveriesSentTotal,
		m.deliveriesFailedTotal,
		m.deliveriesExpiredTotal,
		m.sendAttemptDuration,
		m.deadLetterPublishTotal,
		m.workerInflight,
		m.campaignTriggeredTotal,
		m.jobsEnqueuedTotal,
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

func (m *Metrics) IncDeliverySent(channel string) {
	if m == nil {
		return
	}
	m.deliveriesSentTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncDeliveryFailed(channel string) {
	if m == nil {
		return
	}
	m.deliveriesFailedTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncDeliveryExpired(channel string) {
	if m == nil {
		return
	}
	m.deliveriesExpiredTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) ObserveSendAttemptDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendAttemptDuration.WithLabelValues(normalizeChannel(channel)).Observe(seconds)
}

func (m *Metrics) IncDeadLetterPublish() {
	if m == nil {
		return
	}
	m.deadLetterPublishTotal.Inc()
}

func (m *Metrics) IncWorkerInFlight(channel string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) DecWorkerInFlight(channel string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeChannel(channel)).Dec()
}

func (m *Metrics) IncCampaignTriggered() {
	if m == nil {
		return
	}
	m.campaignTriggeredTotal.Inc()
}

func (m *Metrics) IncJobEnqueued(channel string) {
	if m == nil {
		return
	}
	m.jobsEnqueuedTotal.WithLabelValues(normalizeChannel(channel)).Inc()
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

func normalizeChannel(channel string) string {
	normalized := strings.ToLower(strings.TrimSpace(channel))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
