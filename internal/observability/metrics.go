package observability

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/peaklink/internal/protocol"
	"github.com/danmuck/peaklink/internal/protocol/frame"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DirectionRx = "rx"
	DirectionTx = "tx"
)

var (
	registerOnce sync.Once

	linkMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peaklink",
			Subsystem: "link",
			Name:      "messages_total",
			Help:      "Messages moved over the instrument link.",
		},
		[]string{"link", "direction", "tag"},
	)
	linkPeaks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peaklink",
			Subsystem: "link",
			Name:      "peaks_total",
			Help:      "Measured peaks received in data messages.",
		},
		[]string{"link"},
	)
	linkDecodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peaklink",
			Subsystem: "link",
			Name:      "decode_errors_total",
			Help:      "Stream decode failures by kind.",
		},
		[]string{"link", "kind"},
	)
	linkReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peaklink",
			Subsystem: "link",
			Name:      "connect_attempts_total",
			Help:      "Link open attempts by outcome.",
		},
		[]string{"link", "success"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peaklink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by the host endpoint.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "peaklink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(linkMessages, linkPeaks, linkDecodeErrors, linkReconnects, httpRequests, httpDuration)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordMessage(link, direction string, m protocol.Message) {
	RegisterMetrics()
	linkMessages.WithLabelValues(link, direction, m.Tag().String()).Inc()
	if data, ok := m.(protocol.DataMessage); ok && direction == DirectionRx {
		linkPeaks.WithLabelValues(link).Add(float64(len(data.Peaks)))
	}
}

func RecordDecodeError(link string, err error) {
	RegisterMetrics()
	linkDecodeErrors.WithLabelValues(link, ErrorKind(err)).Inc()
}

func RecordConnectAttempt(link string, success bool) {
	RegisterMetrics()
	label := "false"
	if success {
		label = "true"
	}
	linkReconnects.WithLabelValues(link, label).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// ErrorKind buckets stream errors into a small fixed label set.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrInvalidDiscriminant):
		return "invalid_discriminant"
	case errors.Is(err, protocol.ErrInvalidLength):
		return "invalid_length"
	case errors.Is(err, frame.ErrTooManyPeaks):
		return "too_many_peaks"
	case errors.Is(err, frame.ErrShortMessage):
		return "short_message"
	default:
		return "io"
	}
}
