package apiserver

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts key operations by handler and status code.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// NewMetrics creates and registers the server metrics. A nil registerer
// gets a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	registry, ok := reg.(*prometheus.Registry)
	if !ok || registry == nil {
		registry = prometheus.NewRegistry()
		reg = registry
	}

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "accessnode",
				Name:      "key_requests_total",
				Help:      "Key custody operations by handler and status code.",
			},
			[]string{"handler", "code"},
		),
	}
	reg.MustRegister(m.requests)
	return m
}

func (m *Metrics) observe(handler string, status int) {
	m.requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
}
