package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsTotal) }

var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Outbound notifications by kind, channel and result (sent/skipped/failed).",
	},
	[]string{"kind", "channel", "result"},
)

func IncNotification(kind, channel, result string) {
	notificationsTotal.WithLabelValues(norm(kind), norm(channel), norm(result)).Inc()
}
