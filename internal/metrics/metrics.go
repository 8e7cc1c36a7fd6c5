package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Live attendance metrics
	LiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventlify_live_connections",
			Help: "Number of open live websocket connections",
		},
	)

	LiveRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventlify_live_rooms",
			Help: "Number of event rooms with at least one member",
		},
	)

	LiveMemberships = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventlify_live_memberships",
			Help: "Number of (connection, event) room memberships",
		},
	)

	LiveOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlify_live_ops_total",
			Help: "Live protocol operations by op and result",
		},
		[]string{"op", "result"},
	)

	AttendanceUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlify_attendance_updates_total",
			Help: "Total number of attendanceUpdate broadcasts",
		},
	)

	DroppedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlify_dropped_events_total",
			Help: "Events dropped because a client queue was full",
		},
	)

	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventlify_live_store_latency_seconds",
			Help:    "Latency of live count store calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlify_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventlify_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlify_cache_requests_total",
			Help: "Event cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		LiveConnections,
		LiveRooms,
		LiveMemberships,
		LiveOpsTotal,
		AttendanceUpdates,
		DroppedEvents,
		StoreLatency,
		APIRequestsTotal,
		APIRequestDuration,
		CacheRequests,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation duration.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time into a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Observer) {
	histogram.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time into a labelled histogram.
func (t *Timer) ObserveDurationVec(vec *prometheus.HistogramVec, labels ...string) {
	vec.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
