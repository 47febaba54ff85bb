package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels computations that returned a result.
	OutcomeSuccess = "success"
	// OutcomeRejected labels computations refused for their input (validation, domain or data).
	OutcomeRejected = "rejected"
	// OutcomeError labels failures of the service itself, e.g. the record store.
	OutcomeError = "error"
)

var (
	computationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_rcm",
			Name:      "computations_total",
			Help:      "Total number of engine computations, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	computationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mirador_rcm",
			Name:      "computation_seconds",
			Help:      "Engine computation latency in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	memoLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_rcm",
			Name:      "memo_lookups_total",
			Help:      "Memoized computation lookups, partitioned by operation and hit or miss.",
		},
		[]string{"operation", "result"},
	)

	policyReloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_rcm",
			Name:      "policy_reloads_total",
			Help:      "Number of policy files applied after a change on disk.",
		},
	)
)

// Register attaches mirador-rcm collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		computationsTotal,
		computationDurationSeconds,
		memoLookupsTotal,
		policyReloadsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveComputation records a computation duration and outcome label.
func ObserveComputation(operation string, duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeRejected, OutcomeError:
	default:
		outcome = OutcomeError
	}
	computationsTotal.WithLabelValues(operation, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	computationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveMemo records whether a memoized computation was served from the cache.
func ObserveMemo(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	memoLookupsTotal.WithLabelValues(operation, result).Inc()
}

// ObservePolicyReload counts an applied policy reload.
func ObservePolicyReload() {
	policyReloadsTotal.Inc()
}
