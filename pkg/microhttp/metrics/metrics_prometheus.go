//go:build prometheus

// Package metrics exposes the reactor's operational counters. The
// prometheus-backed implementation is opt-in via the "prometheus" build
// tag; without it, metrics.go's no-op Recorder is linked instead so the
// core never forces the dependency on a consumer that doesn't want it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "microhttp",
		Name:      "connections_accepted_total",
		Help:      "Total connections accepted across all event loops.",
	})
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "microhttp",
		Name:      "connections_active",
		Help:      "Connections currently open.",
	})
	requestsHandled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "microhttp",
		Name:      "requests_handled_total",
		Help:      "Total requests for which a Response was written.",
	})
	requestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "microhttp",
		Name:      "request_errors_total",
		Help:      "Connections ended by a parse, overflow, read or write error, by reason.",
	}, []string{"reason"})
	idleTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "microhttp",
		Name:      "idle_timeouts_total",
		Help:      "Connections closed by the scheduler for sitting idle past the configured timeout.",
	})
	pipelineDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "microhttp",
		Name:      "pipeline_depth",
		Help:      "In-flight (parsed, not yet written) requests of the connection that reported last; not summed across connections.",
	})
)

// Recorder is the prometheus-backed implementation wired in when this
// file's build tag is active.
type Recorder struct{}

// New returns the prometheus Recorder. Metrics are already registered
// globally via promauto at package init, as package-level vars rather
// than per-instance registration.
func New() *Recorder { return &Recorder{} }

func (r *Recorder) ConnectionAccepted() { connectionsAccepted.Inc(); connectionsActive.Inc() }
func (r *Recorder) ConnectionClosed()   { connectionsActive.Dec() }
func (r *Recorder) RequestHandled()     { requestsHandled.Inc() }
func (r *Recorder) RequestError(reason string) {
	requestErrors.WithLabelValues(reason).Inc()
}
func (r *Recorder) IdleTimeout()         { idleTimeouts.Inc() }
func (r *Recorder) PipelineDepth(n int)  { pipelineDepth.Set(float64(n)) }
