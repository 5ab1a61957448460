package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics tracks the rate-limited call gateway.
type GatewayMetrics struct {
	CallsTotal      prometheus.Counter
	CallErrors      *prometheus.CounterVec
	Retries         prometheus.Counter
	BreakerTrips    prometheus.Counter
	BreakerRejected prometheus.Counter
	QueueDepth      prometheus.Gauge
	InFlight        prometheus.Gauge
	CallLatency     prometheus.Histogram
}

func NewGatewayMetrics(namespace string) *GatewayMetrics {
	return &GatewayMetrics{
		CallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of gateway calls issued",
		}),
		CallErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_errors_total",
			Help:      "Total number of gateway call failures by class",
		}, []string{"class"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of rate-limit retries",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		}),
		BreakerRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_rejected_total",
			Help:      "Total number of calls rejected while the breaker was open",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of queued calls",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight",
			Help:      "Current number of in-flight calls",
		}),
		CallLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_latency_seconds",
			Help:      "Latency of outbound calls",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

func (m *GatewayMetrics) Register(r prometheus.Registerer) {
	r.MustRegister(m.CallsTotal, m.CallErrors, m.Retries, m.BreakerTrips,
		m.BreakerRejected, m.QueueDepth, m.InFlight, m.CallLatency)
}

// ScannerMetrics tracks the opportunity pipeline.
type ScannerMetrics struct {
	ScansTotal         prometheus.Counter
	PairsScanned       prometheus.Counter
	OpportunitiesFound prometheus.Counter
	ScanDuration       prometheus.Histogram
}

func NewScannerMetrics(namespace string) *ScannerMetrics {
	return &ScannerMetrics{
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of scan cycles completed",
		}),
		PairsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_scanned_total",
			Help:      "Total number of token pairs scanned",
		}),
		OpportunitiesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_found_total",
			Help:      "Total number of profitable opportunities found",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of scan cycles",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

func (m *ScannerMetrics) Register(r prometheus.Registerer) {
	r.MustRegister(m.ScansTotal, m.PairsScanned, m.OpportunitiesFound, m.ScanDuration)
}

// ExecutorMetrics tracks trade execution outcomes.
type ExecutorMetrics struct {
	Attempts    prometheus.Counter
	Rejected    *prometheus.CounterVec
	Successes   prometheus.Counter
	Failures    prometheus.Counter
	ProfitTotal prometheus.Counter
	GasUsed     prometheus.Histogram
}

func NewExecutorMetrics(namespace string) *ExecutorMetrics {
	return &ExecutorMetrics{
		Attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of execution attempts",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Total number of opportunities rejected before submission",
		}, []string{"reason"}),
		Successes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "successes_total",
			Help:      "Total number of confirmed arbitrage trades",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Total number of failed or reverted trades",
		}),
		ProfitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profit_total_wei",
			Help:      "Cumulative realized profit in wei",
		}),
		GasUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gas_used",
			Help:      "Gas used per confirmed trade",
			Buckets:   prometheus.ExponentialBuckets(21000, 2, 10),
		}),
	}
}

func (m *ExecutorMetrics) Register(r prometheus.Registerer) {
	r.MustRegister(m.Attempts, m.Rejected, m.Successes, m.Failures, m.ProfitTotal, m.GasUsed)
}
