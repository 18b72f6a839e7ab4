package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vovakirdan/voicelink/internal/core"
)

// Metrics holds the server's Prometheus collectors on a private registry.
// It implements core.Observer.
type Metrics struct {
	registry *prometheus.Registry

	RoomsActive         prometheus.Gauge
	ParticipantsActive  prometheus.Gauge
	RoomsCreated        prometheus.Counter
	RoomsEvicted        *prometheus.CounterVec
	ParticipantsJoined  prometheus.Counter
	ParticipantsRemoved *prometheus.CounterVec
	MessagesTotal       prometheus.Counter
	ProviderRequests    *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var _ core.Observer = (*Metrics)(nil)

// New creates and registers all collectors, including the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicelink_rooms_active",
			Help: "Current number of live rooms",
		}),
		ParticipantsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicelink_participants_active",
			Help: "Current number of participants across all rooms",
		}),
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_rooms_created_total",
			Help: "Total number of rooms created",
		}),
		RoomsEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicelink_rooms_evicted_total",
			Help: "Total number of rooms evicted, by reason",
		}, []string{"reason"}),
		ParticipantsJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_participants_joined_total",
			Help: "Total number of participants admitted to rooms",
		}),
		ParticipantsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicelink_participants_removed_total",
			Help: "Total number of participants removed from rooms, by reason",
		}, []string{"reason"}),
		MessagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_messages_total",
			Help: "Total number of messages appended to rooms",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicelink_provider_requests_total",
			Help: "Translation and transcription requests, by operation and outcome",
		}, []string{"operation", "outcome"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RoomsActive,
		m.ParticipantsActive,
		m.RoomsCreated,
		m.RoomsEvicted,
		m.ParticipantsJoined,
		m.ParticipantsRemoved,
		m.MessagesTotal,
		m.ProviderRequests,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RoomCreated() {
	m.RoomsCreated.Inc()
	m.RoomsActive.Inc()
}

func (m *Metrics) RoomEvicted(reason core.EvictReason, participants int) {
	m.RoomsEvicted.WithLabelValues(string(reason)).Inc()
	m.RoomsActive.Dec()
	m.ParticipantsActive.Sub(float64(participants))
}

func (m *Metrics) ParticipantJoined() {
	m.ParticipantsJoined.Inc()
	m.ParticipantsActive.Inc()
}

func (m *Metrics) ParticipantRemoved(reason core.RemoveReason) {
	m.ParticipantsRemoved.WithLabelValues(string(reason)).Inc()
	m.ParticipantsActive.Dec()
}

func (m *Metrics) MessageAppended() {
	m.MessagesTotal.Inc()
}

// ProviderRequest records the outcome of an upstream call.
func (m *Metrics) ProviderRequest(operation, outcome string) {
	m.ProviderRequests.WithLabelValues(operation, outcome).Inc()
}

// GinMiddleware records request counts and latencies per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		m.HTTPRequestsTotal.With(labels).Inc()
		m.HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
