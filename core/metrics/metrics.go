// Package metrics instruments the command dispatcher with Prometheus
// counters: commands processed by name and result, and a dedicated
// counter for SECURITY-class results (the attestation-critical signal).
//
// Grounded on github.com/prometheus/client_golang usage in both
// Generativebots-ocx-backend-go-svc and marmos91-dittofs, the two
// retrieved repos that instrument their services this way; the teacher
// itself exposes no metrics, so this package follows the rest of the
// corpus's idiom rather than the teacher's (silent) one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector observes a single dispatched command and its outcome. The
// core package depends only on this narrow interface, never on
// net/http or the Prometheus registry directly.
type Collector interface {
	Observe(commandName, resultName string)
}

// Noop discards every observation; it is the Collector used when a
// Boundary is built without a Prometheus registry.
type Noop struct{}

// Observe implements Collector.
func (Noop) Observe(string, string) {}

// Prometheus is a Collector backed by client_golang counters.
type Prometheus struct {
	commands *prometheus.CounterVec
	security prometheus.Counter
}

// NewPrometheus registers its metrics against reg and returns a ready
// Collector. Pass prometheus.DefaultRegisterer for the global registry,
// or a prometheus.NewRegistry() for tests.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attestcore",
			Subsystem: "dispatcher",
			Name:      "commands_total",
			Help:      "Invocations of the command dispatcher, by command and result.",
		}, []string{"command", "result"}),
		security: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attestcore",
			Subsystem: "dispatcher",
			Name:      "security_violations_total",
			Help:      "STACK_POP results indicating shadow-stack underflow or mismatch.",
		}),
	}
	reg.MustRegister(p.commands, p.security)
	return p
}

// Observe implements Collector.
func (p *Prometheus) Observe(commandName, resultName string) {
	p.commands.WithLabelValues(commandName, resultName).Inc()
	if resultName == "SECURITY" {
		p.security.Inc()
	}
}
