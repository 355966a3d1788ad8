package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		backendCallsTotal,
		backendLatencyMs,
		chatAttemptsTotal,
		ticketsTotal,
		escalationsTotal,
		sessionResetsTotal,
	)
}

var (
	backendCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_backend_calls_total",
			Help: "Ticket backend submissions by call site and outcome.",
		},
		[]string{"call", "outcome"}, // call: ticket|follow_up, outcome: ok|error
	)

	backendLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_backend_latency_ms",
			Help:    "Ticket backend latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"call", "success"},
	)

	chatAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_attempts_total",
			Help: "Automated reply attempts consumed, by outcome (reply|fallback|failure).",
		},
		[]string{"outcome"},
	)

	ticketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_tickets_total",
			Help: "Ticket creation outcomes (created|invalid|backend_error|unauthenticated).",
		},
		[]string{"outcome"},
	)

	escalationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_escalations_total",
			Help: "Sessions escalated to human support after exhausting attempts.",
		},
	)

	sessionResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_session_resets_total",
			Help: "Session resets by reason (user|unauthenticated).",
		},
		[]string{"reason"},
	)
)

func ObserveBackendCall(call string, d time.Duration, success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	backendCallsTotal.WithLabelValues(label(call), outcome).Inc()
	backendLatencyMs.WithLabelValues(label(call), strconv.FormatBool(success)).
		Observe(float64(d.Milliseconds()))
}

func IncChatAttempt(outcome string) {
	chatAttemptsTotal.WithLabelValues(label(outcome)).Inc()
}

func IncTicket(outcome string) {
	ticketsTotal.WithLabelValues(label(outcome)).Inc()
}

func IncEscalation() { escalationsTotal.Inc() }

func IncSessionReset(reason string) {
	sessionResetsTotal.WithLabelValues(label(reason)).Inc()
}
