package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(ordersTotal, checkoutOutcomesTotal)
}

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Order lifecycle transitions by target status.",
		},
		[]string{"status"},
	)

	checkoutOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_outcomes_total",
			Help: "Final checkout pipeline state per capture attempt.",
		},
		[]string{"state"}, // provisioned | paid_no_line | failed
	)
)

func IncOrder(status string) {
	ordersTotal.WithLabelValues(norm(status)).Inc()
}

func IncCheckoutOutcome(state string) {
	checkoutOutcomesTotal.WithLabelValues(norm(state)).Inc()
}
