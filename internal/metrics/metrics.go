// Package metrics exposes the SOS pipeline counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every recorder then does nothing.
type Metrics struct {
	reg prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	alertsTotal         *prometheus.CounterVec
	uploadFailuresTotal prometheus.Counter
	orphansDeletedTotal prometheus.Counter

	notificationsTotal *prometheus.CounterVec
	clientsActive      *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		alertsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sos_alerts_total",
				Help: "SOS send attempts by outcome",
			},
			[]string{"outcome"},
		),
		uploadFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "sos_recording_upload_failures_total",
			Help: "Voice recording uploads that failed",
		}),
		orphansDeletedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "sos_orphan_recordings_deleted_total",
			Help: "Recordings removed because no alert referenced them",
		}),

		notificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_delivered_total",
				Help: "Notifications pushed to connected clients",
			},
			[]string{"role"},
		),
		clientsActive: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "realtime_clients_active",
				Help: "Connected real-time clients",
			},
			[]string{"role"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// AlertOutcome counts one dispatch attempt ("sent", "rejected", "failed", "busy").
func (m *Metrics) AlertOutcome(outcome string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) UploadFailed() {
	if m == nil {
		return
	}
	m.uploadFailuresTotal.Inc()
}

func (m *Metrics) OrphansDeleted(n int) {
	if m == nil {
		return
	}
	m.orphansDeletedTotal.Add(float64(n))
}

func (m *Metrics) NotificationDelivered(role string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(role).Inc()
}

// ClientConnected adjusts the active client gauge by delta.
func (m *Metrics) ClientConnected(role string, delta int) {
	if m == nil {
		return
	}
	m.clientsActive.WithLabelValues(role).Add(float64(delta))
}
