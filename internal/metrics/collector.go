package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/supermancell/chatprobe/internal/common"
)

// Collector holds the probe's Prometheus metrics on a private registry
type Collector struct {
	registry       *prometheus.Registry
	events         *prometheus.CounterVec
	receivedBytes  prometheus.Counter
	connectionOpen prometheus.Gauge
	handshake      prometheus.Histogram
}

// NewCollector creates a collector with all metrics registered
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatprobe_events_total",
				Help: "Connection events observed, by kind",
			},
			[]string{"kind"},
		),
		receivedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatprobe_received_bytes_total",
			Help: "Payload bytes received in data frames",
		}),
		connectionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatprobe_connection_open",
			Help: "1 while the WebSocket connection is open",
		}),
		handshake: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatprobe_handshake_seconds",
			Help:    "Duration of the WebSocket opening handshake",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}

	c.registry.MustRegister(c.events, c.receivedBytes, c.connectionOpen, c.handshake)
	return c
}

// RecordEvent updates counters for a single event
func (c *Collector) RecordEvent(evt common.Event) {
	c.events.WithLabelValues(evt.Kind.String()).Inc()

	switch evt.Kind {
	case common.EventOpened:
		c.connectionOpen.Set(1)
	case common.EventMessage:
		c.receivedBytes.Add(float64(len(evt.Data)))
	case common.EventClosed:
		c.connectionOpen.Set(0)
	}
}

// ObserveHandshake records how long the dial took
func (c *Collector) ObserveHandshake(d time.Duration) {
	c.handshake.Observe(d.Seconds())
}

// Handler serves the metrics in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
