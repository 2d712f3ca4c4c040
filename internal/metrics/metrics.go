package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Events           *prometheus.CounterVec
	Attributions     *prometheus.CounterVec
	Onboarding       *prometheus.CounterVec
	MembershipChecks *prometheus.CounterVec
	HandlerErrors    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refgrow_events_total",
			Help: "Inbound chat events by resolved intent",
		}, []string{"intent"}),
		Attributions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refgrow_attributions_total",
			Help: "Referral attribution attempts by outcome",
		}, []string{"outcome"}),
		Onboarding: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refgrow_onboarding_total",
			Help: "Onboarding transitions by outcome",
		}, []string{"outcome"}),
		MembershipChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refgrow_membership_checks_total",
			Help: "Channel membership checks by result",
		}, []string{"result"}),
		HandlerErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "refgrow_handler_errors_total",
			Help: "Events that failed with a storage or internal error",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveEvent(intent string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(intent).Inc()
}

func (m *Metrics) ObserveAttribution(outcome string) {
	if m == nil {
		return
	}
	m.Attributions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveOnboarding(outcome string) {
	if m == nil {
		return
	}
	m.Onboarding.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveMembership(result string) {
	if m == nil {
		return
	}
	m.MembershipChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveError() {
	if m == nil {
		return
	}
	m.HandlerErrors.Inc()
}
