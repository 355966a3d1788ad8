package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(handoffsTotal) }

var handoffsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "support_handoffs_total",
		Help: "Escalation handoff deliveries, labeled by sink and outcome.",
	},
	[]string{"sink", "outcome"}, // 'delivered', 'duplicate', 'failed', 'dropped'
)

func IncHandoff(sink, outcome string) {
	handoffsTotal.WithLabelValues(label(sink), label(outcome)).Inc()
}
