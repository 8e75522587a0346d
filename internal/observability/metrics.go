package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "titpd"

var (
	registerOnce sync.Once

	connectionsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "connections_total",
			Help:      "Accepted TCP connections.",
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "active_sessions",
			Help:      "Connections currently held by a worker.",
		},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "frames_total",
			Help:      "Length-prefixed frames read or written.",
		},
		[]string{"direction", "result"},
	)
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "messages_total",
			Help:      "Messages processed by type and response code.",
		},
		[]string{"mti", "code"},
	)
	messageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "message_duration_seconds",
			Help:      "Decode to response build duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mti"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectionsAccepted,
			activeSessions,
			framesTotal,
			messagesTotal,
			messageDuration,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordConnectionAccepted() {
	RegisterMetrics()
	connectionsAccepted.Inc()
}

func SessionOpened() {
	RegisterMetrics()
	activeSessions.Inc()
}

func SessionClosed() {
	RegisterMetrics()
	activeSessions.Dec()
}

// RecordFrame counts one frame; direction is "in" or "out".
func RecordFrame(direction string, ok bool) {
	RegisterMetrics()
	result := "ok"
	if !ok {
		result = "error"
	}
	framesTotal.WithLabelValues(direction, result).Inc()
}

// RecordMessage counts one pipeline result. mti is "unknown" when the
// request could not be decoded.
func RecordMessage(mti, code string, duration time.Duration) {
	RegisterMetrics()
	messagesTotal.WithLabelValues(mti, code).Inc()
	messageDuration.WithLabelValues(mti).Observe(duration.Seconds())
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
