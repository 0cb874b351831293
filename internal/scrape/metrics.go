package scrape

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_rows_stored_total",
			Help: "Metric rows written to the store per service",
		},
		[]string{"service_id"},
	)

	rowsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_rows_skipped_total",
			Help: "Metric rows dropped during a scrape per service",
		},
		[]string{"service_id"},
	)
)

func observeRow(serviceID int64, stored bool) {
	label := strconv.FormatInt(serviceID, 10)
	if stored {
		rowsStoredTotal.WithLabelValues(label).Inc()
	} else {
		rowsSkippedTotal.WithLabelValues(label).Inc()
	}
}
