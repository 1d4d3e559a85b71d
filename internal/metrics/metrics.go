package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "session_gate"

// Renewal outcomes
const (
	RenewalSucceeded   = "succeeded"
	RenewalRejected    = "rejected"
	RenewalUnavailable = "unavailable"
	RenewalNoSession   = "no_session"
	RenewalNoRefresh   = "no_refresh_token"
)

// Metrics holds the Prometheus collectors for the token lifecycle.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	renewals      *prometheus.CounterVec
	renewalCalls  prometheus.Counter
	joinedWaiters prometheus.Counter
	signOuts      *prometheus.CounterVec
	gateDecisions *prometheus.CounterVec
	busPublished  prometheus.Counter
	syncChecks    *prometheus.CounterVec
	activeSyncs   prometheus.Gauge
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		renewals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewals_total",
			Help:      "Refresh requests by outcome",
		}, []string{"result"}),
		renewalCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewal_calls_total",
			Help:      "Network calls made to the renewal endpoint",
		}),
		joinedWaiters: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewal_waiters_total",
			Help:      "Refresh callers that joined an in-flight renewal",
		}),
		signOuts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_signouts_total",
			Help:      "Sessions cleared by the refresh coordinator",
		}, []string{"reason"}),
		gateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Access gate evaluations by resulting state and action",
		}, []string{"state", "action"}),
		busPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_published_total",
			Help:      "Credential pairs published on the notification bus",
		}),
		syncChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_checks_total",
			Help:      "Expiry checks run by session sync providers",
		}, []string{"outcome"}),
		activeSyncs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_providers_active",
			Help:      "Currently mounted session sync providers",
		}),
	}
}

func (m *Metrics) Renewal(result string) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(result).Inc()
}

func (m *Metrics) RenewalCall() {
	if m == nil {
		return
	}
	m.renewalCalls.Inc()
}

func (m *Metrics) WaiterJoined() {
	if m == nil {
		return
	}
	m.joinedWaiters.Inc()
}

func (m *Metrics) SignOut(reason string) {
	if m == nil {
		return
	}
	m.signOuts.WithLabelValues(reason).Inc()
}

func (m *Metrics) GateDecision(state, action string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(state, action).Inc()
}

func (m *Metrics) Published() {
	if m == nil {
		return
	}
	m.busPublished.Inc()
}

func (m *Metrics) SyncCheck(outcome string) {
	if m == nil {
		return
	}
	m.syncChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SyncMounted(delta float64) {
	if m == nil {
		return
	}
	m.activeSyncs.Add(delta)
}
