// Package metrics exposes Prometheus collectors for the delegation
// runtime, wired into the event bus so instrumentation stays out of
// the hot path of agenttree/delegation - grounded on the teacher's own
// use of github.com/prometheus/client_golang for its Team/Agent metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orchestra-run/orchestra/eventbus"
)

// Metrics holds every collector the runtime reports.
type Metrics struct {
	AgentsCreated   prometheus.Counter
	Delegations     prometheus.Counter
	HelpersActive   prometheus.Gauge
	Reassignments   prometheus.Counter
	ToolCallsTotal  *prometheus.CounterVec
	ToolCallErrors  *prometheus.CounterVec
	StateTransition *prometheus.CounterVec
}

// New creates and registers every collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AgentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestra",
			Name:      "agents_created_total",
			Help:      "Total number of agents (root and delegates) created.",
		}),
		Delegations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestra",
			Name:      "delegations_total",
			Help:      "Total number of delegate() calls that created or reused a helper.",
		}),
		HelpersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orchestra",
			Name:      "helpers_active",
			Help:      "Number of helper agents currently running a delegated task.",
		}),
		Reassignments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestra",
			Name:      "reassignments_total",
			Help:      "Total number of failed tasks that were reassigned to a new helper.",
		}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestra",
			Name:      "tool_calls_total",
			Help:      "Total AI function calls, by function name.",
		}, []string{"function"}),
		ToolCallErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestra",
			Name:      "tool_call_errors_total",
			Help:      "Total AI function calls that returned an error, by function name.",
		}, []string{"function"}),
		StateTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestra",
			Name:      "agent_state_transitions_total",
			Help:      "Agent run-state transitions, by from/to state.",
		}, []string{"from", "to"}),
	}

	reg.MustRegister(
		m.AgentsCreated, m.Delegations, m.HelpersActive, m.Reassignments,
		m.ToolCallsTotal, m.ToolCallErrors, m.StateTransition,
	)
	return m
}

// Subscribe wires m to bus, translating events into collector updates.
// Returns the unsubscribe func, the same contract as eventbus.Bus.Subscribe.
func (m *Metrics) Subscribe(bus *eventbus.Bus) func() {
	return bus.Subscribe(func(ev eventbus.Event) {
		switch ev.Kind {
		case eventbus.KindAgentCreated:
			m.AgentsCreated.Inc()
		case eventbus.KindDelegated:
			m.Delegations.Inc()
			m.HelpersActive.Inc()
		case eventbus.KindToolCall:
			m.ToolCallsTotal.WithLabelValues(ev.ToolName).Inc()
			if ev.ToolErr != "" {
				m.ToolCallErrors.WithLabelValues(ev.ToolName).Inc()
			}
		case eventbus.KindStateChange:
			m.StateTransition.WithLabelValues(ev.FromState, ev.ToState).Inc()
			if ev.ToState == "terminated" || ev.ToState == "idle" {
				m.HelpersActive.Dec()
			}
		}
	})
}
