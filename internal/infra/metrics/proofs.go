package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		proofIngestsTotal,
		adminDecisionsTotal,
	)
}

var (
	proofIngestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proof_ingests_total",
			Help: "Proof submissions by evidence kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	adminDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_decisions_total",
			Help: "Admin review decisions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
)

func IncProofIngest(kind, outcome string) {
	proofIngestsTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}

func IncAdminDecision(action, outcome string) {
	adminDecisionsTotal.WithLabelValues(norm(action), norm(outcome)).Inc()
}
