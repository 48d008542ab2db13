package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		planActivationsTotal,
		tenantsDeactivatedTotal,
	)
}

var (
	planActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_activations_total",
			Help: "Plan activations following payment confirmation, by plan.",
		},
		[]string{"plan"},
	)

	tenantsDeactivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenants_deactivated_total",
			Help: "Tenants deactivated by the expiry sweep.",
		},
	)
)

func IncPlanActivation(plan string) {
	planActivationsTotal.WithLabelValues(norm(plan)).Inc()
}

func AddTenantsDeactivated(n int) {
	tenantsDeactivatedTotal.Add(float64(n))
}
