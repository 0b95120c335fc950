package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/time-oracle/base/metrics"
	"example.com/time-oracle/core/measurements"
)

type clientMetrics struct {
	reqsSent      prometheus.Counter
	respsAccepted prometheus.Counter
	failures      *prometheus.CounterVec
}

var mtrcs = newClientMetrics()

func newClientMetrics() *clientMetrics {
	return &clientMetrics{
		reqsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ClientReqsSentN,
			Help: metrics.ClientReqsSentH,
		}),
		respsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ClientRespsAcceptedN,
			Help: metrics.ClientRespsAcceptedH,
		}),
		failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ClientFailuresN,
			Help: metrics.ClientFailuresH,
		}, []string{"kind"}),
	}
}

func (m *clientMetrics) observe(s *measurements.Sample) {
	if s.Success() {
		m.respsAccepted.Inc()
	} else {
		m.failures.WithLabelValues(s.Failure.Kind.String()).Inc()
	}
}
