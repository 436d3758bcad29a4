package demux

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics bundles the demultiplexer's Prometheus instrumentation. It is
// deliberately decoupled from any concrete HTTP server type: Metrics()
// returns a plain http.Handler the caller mounts wherever it likes.
type metrics struct {
	registry        *prometheus.Registry
	resources       prometheus.Gauge
	handlersInFlight *prometheus.GaugeVec
	mimeChurn       *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		resources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hutz",
			Subsystem: "demux",
			Name:      "resources_registered",
			Help:      "Number of distinct (path, method, content-type) resources currently registered.",
		}),
		handlersInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hutz",
			Subsystem: "demux",
			Name:      "handlers_in_flight",
			Help:      "Number of requests currently holding a handler usage counter, by path and method.",
		}, []string{"path", "method"}),
		mimeChurn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hutz",
			Subsystem: "demux",
			Name:      "mime_registration_total",
			Help:      "MIME type/subtype registry register/unregister calls, by registry and outcome.",
		}, []string{"registry", "outcome"}),
	}
	reg.MustRegister(m.resources, m.handlersInFlight, m.mimeChurn)
	return m
}

// Handler exposes the demultiplexer's metrics for scraping.
func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
