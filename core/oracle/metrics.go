package oracle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/time-oracle/base/metrics"
)

type oracleMetrics struct {
	reqs     *prometheus.CounterVec
	duration prometheus.Histogram
}

var mtrcs = newOracleMetrics()

func newOracleMetrics() *oracleMetrics {
	return &oracleMetrics{
		reqs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.OracleRequestsN,
			Help: metrics.OracleRequestsH,
		}, []string{"method"}),
		duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    metrics.OracleQueryDurationN,
			Help:    metrics.OracleQueryDurationH,
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
}
