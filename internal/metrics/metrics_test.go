package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should tolerate duplicates: %v", err)
	}
}

func TestObserveComputationLabels(t *testing.T) {
	before := testutil.ToFloat64(computationsTotal.WithLabelValues("fit_weibull", OutcomeRejected))
	ObserveComputation("fit_weibull", time.Millisecond, OutcomeRejected)
	after := testutil.ToFloat64(computationsTotal.WithLabelValues("fit_weibull", OutcomeRejected))
	if after-before != 1 {
		t.Fatalf("expected rejected counter to increase by 1, got %v", after-before)
	}

	beforeErr := testutil.ToFloat64(computationsTotal.WithLabelValues("fit_weibull", OutcomeError))
	ObserveComputation("fit_weibull", -time.Second, "bogus")
	if got := testutil.ToFloat64(computationsTotal.WithLabelValues("fit_weibull", OutcomeError)); got-beforeErr != 1 {
		t.Fatalf("unknown outcomes should count as errors")
	}
}

func TestObserveMemo(t *testing.T) {
	before := testutil.ToFloat64(memoLookupsTotal.WithLabelValues("compose_system", "hit"))
	ObserveMemo("compose_system", true)
	if got := testutil.ToFloat64(memoLookupsTotal.WithLabelValues("compose_system", "hit")); got-before != 1 {
		t.Fatalf("expected hit counter to increase")
	}
}
