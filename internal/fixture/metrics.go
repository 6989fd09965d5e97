package fixture

import "github.com/prometheus/client_golang/prometheus"

// metrics are registered per Server so tests can use private registries.
type metrics struct {
	requestTotal     *prometheus.CounterVec
	requestLatency   prometheus.Histogram
	rateLimitedTotal prometheus.Counter
	grpcChecksTotal  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixture_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"method", "path", "status"},
		),
		requestLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fixture_request_duration_seconds",
				Help:    "Request latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		rateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fixture_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
		grpcChecksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fixture_grpc_requests_total",
				Help: "gRPC requests dispatched on the TLS port",
			},
		),
	}
	reg.MustRegister(m.requestTotal, m.requestLatency, m.rateLimitedTotal, m.grpcChecksTotal)
	return m
}
