package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(provisioningTotal, provisioningSeconds, linesSynced) }

var (
	provisioningTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "line_provisioning_total",
			Help: "Line provisioning attempts by result.",
		},
		[]string{"result"}, // ok | failed | timeout | malformed
	)

	provisioningSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "line_provisioning_seconds",
			Help:    "Time spent provisioning a line.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	linesSynced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lines_synced_total",
			Help: "Lines refreshed from the connectivity provider by result.",
		},
		[]string{"result"},
	)
)

func IncProvisioning(result string) {
	provisioningTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveProvisioning(seconds float64) {
	provisioningSeconds.Observe(seconds)
}

func IncLineSync(result string) {
	linesSynced.WithLabelValues(norm(result)).Inc()
}
