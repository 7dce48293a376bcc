package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meat"

// Gate outcomes used as the "outcome" label.
const (
	OutcomeAllow    = "allow"
	OutcomeLocked   = "locked"
	OutcomeBypass   = "bypass"
	OutcomeFailOpen = "fail_open"
)

// Metrics groups the collectors the engine and gate report to. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	gateDecisions     *prometheus.CounterVec
	submissions       *prometheus.CounterVec
	unrecognizedItems prometheus.Counter
	configGaps        *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	snapshotReloads   *prometheus.CounterVec
	alertFailures     prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests so repeated construction does not collide.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gateDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Weekly compliance gate decisions by outcome.",
		}, []string{"outcome"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_submissions_total",
			Help:      "Weekly count submissions by result.",
		}, []string{"result"}),
		unrecognizedItems: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unrecognized_items_total",
			Help:      "Usage lines excluded because the item is neither a combo nor a protein.",
		}),
		configGaps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_gaps_total",
			Help:      "Reference data gaps hit during reconciliation.",
		}, []string{"kind"}),
		reconcileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent building a network reconciliation.",
			Buckets:   prometheus.DefBuckets,
		}),
		snapshotReloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_reloads_total",
			Help:      "Reference table reloads by result.",
		}, []string{"result"}),
		alertFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_failures_total",
			Help:      "Operator alerts that could not be delivered.",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) GateDecision(outcome string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Submission(result string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) UnrecognizedItems(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unrecognizedItems.Add(float64(n))
}

func (m *Metrics) ConfigGap(kind string) {
	if m == nil {
		return
	}
	m.configGaps.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveReconcile(seconds float64) {
	if m == nil {
		return
	}
	m.reconcileDuration.Observe(seconds)
}

func (m *Metrics) SnapshotReload(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.snapshotReloads.WithLabelValues(result).Inc()
}

func (m *Metrics) AlertFailed() {
	if m == nil {
		return
	}
	m.alertFailures.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
