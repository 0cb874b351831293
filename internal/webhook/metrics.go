package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook delivery attempts by event type and outcome",
	},
	[]string{"event_type", "outcome"},
)

func observeDelivery(eventType string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	deliveriesTotal.WithLabelValues(eventType, outcome).Inc()
}
