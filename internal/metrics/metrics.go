// Package metrics provides Prometheus metrics collection for nubilum.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nubilum/nubilum/jsonv"
)

// Message results recorded by MessagesReceived.
const (
	ResultOK         = "ok"
	ResultDuplicate  = "duplicate"
	ResultBadShape   = "bad_shape"
	ResultParseError = "parse_error"
	ResultTooLarge   = "too_large"
)

// Collector holds all Prometheus metrics for nubilum.
type Collector struct {
	// Connection metrics
	Connections      prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	BytesReceived    prometheus.Counter
	BytesSent        prometheus.Counter

	// Message metrics
	MessagesReceived *prometheus.CounterVec
	ParseErrors      *prometheus.CounterVec
	ParseDuration    prometheus.Histogram
	AcksSent         prometheus.Counter

	// Store metrics
	StoreErrors *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		Connections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "nubilum",
				Name:      "connections",
				Help:      "Number of open client connections",
			},
		),
		ConnectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "nubilum",
				Name:      "connections_total",
				Help:      "Total number of accepted client connections",
			},
		),
		BytesReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "nubilum",
				Name:      "received_bytes_total",
				Help:      "Total bytes read from clients",
			},
		),
		BytesSent: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "nubilum",
				Name:      "sent_bytes_total",
				Help:      "Total bytes written to clients",
			},
		),
		MessagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nubilum",
				Name:      "messages_received_total",
				Help:      "Total documents received, by result",
			},
			[]string{"result"},
		),
		ParseErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nubilum",
				Name:      "parse_errors_total",
				Help:      "Total parse failures, by kind",
			},
			[]string{"kind"},
		),
		ParseDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "nubilum",
				Name:      "parse_duration_seconds",
				Help:      "Time spent splitting a read buffer into documents",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
		),
		AcksSent: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "nubilum",
				Name:      "acks_sent_total",
				Help:      "Total acknowledgements written",
			},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nubilum",
				Name:      "store_errors_total",
				Help:      "Total message store failures, by operation",
			},
			[]string{"op"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "nubilum",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "nubilum",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
	}
}

// ObserveParseError counts err under its parse error kind.
func (c *Collector) ObserveParseError(err error) {
	c.ParseErrors.WithLabelValues(ParseErrorKind(err)).Inc()
}

// ParseErrorKind maps a parse error to a low-cardinality label.
func ParseErrorKind(err error) string {
	switch {
	case errors.Is(err, jsonv.ErrMaxDepth):
		return "max_depth"
	case errors.Is(err, jsonv.ErrUnexpectedEOF):
		return "eof"
	case errors.Is(err, jsonv.ErrSyntax):
		return "syntax"
	default:
		return "other"
	}
}
