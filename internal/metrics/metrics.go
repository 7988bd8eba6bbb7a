package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Outbound HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Backtest metrics
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	tradesTotal      *prometheus.CounterVec
	barsSimulated    prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smacross_http_client_requests_total",
				Help: "Total number of outbound HTTP requests to data sources",
			},
			[]string{"host", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smacross_http_client_request_duration_seconds",
				Help:    "Outbound HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"host"},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)

	// Backtest metrics
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smacross_backtests_total",
			Help: "Total number of symbol backtests",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smacross_backtest_duration_seconds",
			Help:    "Per-symbol backtest duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smacross_trades_total",
			Help: "Total number of simulated trades by outcome",
		},
		[]string{"outcome"},
	)
	r.barsSimulated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smacross_bars_simulated_total",
			Help: "Total number of price bars simulated",
		},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.barsSimulated)

	return r
}

// RecordRequest records metrics for an outbound HTTP request.
// A status of 0 means the request failed before a response arrived.
func (r *Registry) RecordRequest(host string, status int, duration float64) {
	r.httpRequestsTotal.WithLabelValues(host, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(host).Observe(duration)
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordTrades adds count trades with the given outcome.
func (r *Registry) RecordTrades(outcome string, count int) {
	if count <= 0 {
		return
	}
	r.tradesTotal.WithLabelValues(outcome).Add(float64(count))
}

// RecordBars adds simulated bars.
func (r *Registry) RecordBars(count int) {
	if count <= 0 {
		return
	}
	r.barsSimulated.Add(float64(count))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status >= 100:
		return "1xx"
	default:
		return "error"
	}
}
