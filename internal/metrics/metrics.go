// Package metrics exposes Prometheus collectors for probing, switching and
// dispatch.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/orchestrator"
)

// Metrics bundles Prometheus collectors for the orchestrator.
type Metrics struct {
	registry         *prometheus.Registry
	Dispatches       *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	Probes           *prometheus.CounterVec
	ProbeDuration    *prometheus.HistogramVec
	Switches         *prometheus.CounterVec
	Available        *prometheus.GaugeVec
}

var _ orchestrator.Recorder = (*Metrics)(nil)

// New constructs a metrics registry with orchestrator collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polyglot_dispatch_total",
		Help: "Dispatched calls by kind, backend and error kind",
	}, []string{"kind", "backend", "error_kind"})

	dispatchDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polyglot_dispatch_duration_seconds",
		Help:    "Dispatch duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "backend"})

	probes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polyglot_probe_total",
		Help: "Backend probes by kind, backend and outcome",
	}, []string{"kind", "backend", "outcome"})

	probeDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polyglot_probe_duration_seconds",
		Help:    "Backend probe duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	switches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polyglot_switch_total",
		Help: "Active backend changes by kind and target",
	}, []string{"kind", "to"})

	available := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyglot_available_backends",
		Help: "Backends in the availability set by kind",
	}, []string{"kind"})

	reg.MustRegister(dispatches, dispatchDur, probes, probeDur, switches, available)

	return &Metrics{
		registry:         reg,
		Dispatches:       dispatches,
		DispatchDuration: dispatchDur,
		Probes:           probes,
		ProbeDuration:    probeDur,
		Switches:         switches,
		Available:        available,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDispatch records one dispatch.
func (m *Metrics) ObserveDispatch(kind catalog.Kind, backendID string, errKind orchestrator.ErrorKind, elapsed time.Duration) {
	if m == nil {
		return
	}
	if backendID == "" {
		backendID = "none"
	}
	outcome := string(errKind)
	if outcome == "" {
		outcome = "ok"
	}
	m.Dispatches.WithLabelValues(string(kind), backendID, outcome).Inc()
	m.DispatchDuration.WithLabelValues(string(kind), backendID).Observe(elapsed.Seconds())
}

// ObserveProbe records one probe.
func (m *Metrics) ObserveProbe(kind catalog.Kind, id string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.Probes.WithLabelValues(string(kind), id, outcome).Inc()
	m.ProbeDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveSwitch records a change of active backend.
func (m *Metrics) ObserveSwitch(kind catalog.Kind, _, to string) {
	if m == nil {
		return
	}
	if to == "" {
		to = "none"
	}
	m.Switches.WithLabelValues(string(kind), to).Inc()
}

// SetAvailable records the size of an availability set.
func (m *Metrics) SetAvailable(kind catalog.Kind, n int) {
	if m == nil {
		return
	}
	m.Available.WithLabelValues(string(kind)).Set(float64(n))
}
