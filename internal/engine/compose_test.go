package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

func TestComposeSeriesAvailability(t *testing.T) {
	res, err := newModel().Compose([]models.RamMetric{
		{Availability: 0.99},
		{Availability: 0.98},
	}, models.Topology{Kind: models.TopologySeries})
	require.NoError(t, err)
	assert.InDelta(t, 0.9702, res.Availability, 1e-9)
	assert.False(t, res.HasReliability)
	assert.Len(t, res.Components, 2)
}

func TestComposeSeriesNeverExceedsWeakestUnit(t *testing.T) {
	model := newModel()
	components := []models.RamMetric{
		{MTBF: 1000, MTTR: 10, Horizon: 100},
		{FailureRate: 0.002, MTTR: 4, Horizon: 100},
		{Beta: 2, Eta: 3000, MTTR: 24, Horizon: 100},
	}
	prevA, prevR := 1.0, 1.0
	for n := 1; n <= len(components); n++ {
		res, err := model.Compose(components[:n], models.Topology{})
		require.NoError(t, err)
		require.True(t, res.HasReliability)
		for _, c := range res.Components {
			assert.LessOrEqual(t, res.Availability, c.Availability)
			assert.LessOrEqual(t, res.Reliability, c.Reliability)
		}
		assert.LessOrEqual(t, res.Availability, prevA)
		assert.LessOrEqual(t, res.Reliability, prevR)
		prevA, prevR = res.Availability, res.Reliability
	}
}

func TestComposeSeriesRates(t *testing.T) {
	res, err := newModel().Compose([]models.RamMetric{
		{FailureRate: 0.001, MTTR: 10},
		{FailureRate: 0.003, MTTR: 2},
	}, models.Topology{Kind: models.TopologySeries})
	require.NoError(t, err)
	assert.InDelta(t, 0.004, res.FailureRate, 1e-12)
	assert.InDelta(t, 250, res.MTBF, 1e-9)
	// rate-weighted repair time
	assert.InDelta(t, (0.001*10+0.003*2)/0.004, res.MTTR, 1e-9)
	assert.InDelta(t, (1000.0/1010)*(333.3333333333333/335.3333333333333), res.Availability, 1e-9)
}

func TestComposeActiveMatchesBinomial(t *testing.T) {
	r := 0.9
	res, err := newModel().Compose([]models.RamMetric{
		{Availability: 0.95, Reliability: r},
		{Availability: 0.95, Reliability: r},
		{Availability: 0.95, Reliability: r},
	}, models.Topology{Kind: models.TopologyActive, Required: 2})
	require.NoError(t, err)
	want := 3*r*r*(1-r) + r*r*r
	assert.InDelta(t, want, res.Reliability, 1e-12)
	a := 0.95
	assert.InDelta(t, 3*a*a*(1-a)+a*a*a, res.Availability, 1e-12)
}

func TestComposeActiveParallelDefault(t *testing.T) {
	res, err := newModel().Compose([]models.RamMetric{
		{Availability: 0.9, Reliability: 0.8},
		{Availability: 0.7, Reliability: 0.6},
	}, models.Topology{Kind: models.TopologyActive})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Topology.Required)
	assert.InDelta(t, 1-0.2*0.4, res.Reliability, 1e-12)
	assert.InDelta(t, 1-0.1*0.3, res.Availability, 1e-12)
}

func TestComposeVotingIsTwoOfThree(t *testing.T) {
	units := []models.RamMetric{
		{Availability: 0.99, Reliability: 0.9},
		{Availability: 0.99, Reliability: 0.9},
		{Availability: 0.99, Reliability: 0.9},
	}
	voting, err := newModel().Compose(units, models.Topology{Kind: models.TopologyVoting2oo3})
	require.NoError(t, err)
	active, err := newModel().Compose(units, models.Topology{Kind: models.TopologyActive, Required: 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.972, voting.Reliability, 1e-12)
	assert.Equal(t, active.Reliability, voting.Reliability)
	assert.Equal(t, active.Availability, voting.Availability)

	_, err = newModel().Compose(units[:2], models.Topology{Kind: models.TopologyVoting2oo3})
	require.ErrorIs(t, err, utils.ErrValidation)
}

func TestComposeStandbyExponentialClosedForm(t *testing.T) {
	res, err := newModel().Compose([]models.RamMetric{
		{FailureRate: 0.001, MTTR: 5},
		{FailureRate: 0.001, MTTR: 5},
	}, models.Topology{Kind: models.TopologyStandby, Horizon: 1000})
	require.NoError(t, err)
	require.True(t, res.HasReliability)
	assert.InDelta(t, 2*math.Exp(-1), res.Reliability, 1e-12)

	a := 1000.0 / 1005
	assert.InDelta(t, 1-(1-a)*(1-a), res.Availability, 1e-12)
	assert.InDelta(t, 2.5, res.MTTR, 1e-12)
	assert.InDelta(t, res.Availability, res.MTBF/(res.MTBF+res.MTTR), 1e-9)
}

func TestComposeStandbyNumericConvolution(t *testing.T) {
	// two exponential units with different rates have a closed form to compare against
	l1, l2, horizon := 0.001, 0.002, 1000.0
	res, err := newModel().Compose([]models.RamMetric{
		{FailureRate: l1, MTTR: 5},
		{FailureRate: l2, MTTR: 5},
	}, models.Topology{Kind: models.TopologyStandby, Horizon: horizon})
	require.NoError(t, err)
	want := (l2*math.Exp(-l1*horizon) - l1*math.Exp(-l2*horizon)) / (l2 - l1)
	assert.InDelta(t, want, res.Reliability, 1e-3)

	// Weibull with beta 1 is exponential, so the numeric path must agree with the Erlang sum
	units := []unit{
		{metric: models.RamMetric{Beta: 1, Eta: 1000}, weibull: true},
		{metric: models.RamMetric{FailureRate: 0.001}},
		{metric: models.RamMetric{Beta: 1, Eta: 1000}, weibull: true},
	}
	assert.InDelta(t, poissonTail(1, 2), convolveStandby(units, 1000, 512), 1e-3)
}

func TestComposeStandbyBeatsActiveParallel(t *testing.T) {
	units := []models.RamMetric{
		{Beta: 2.5, Eta: 4000, MTTR: 8},
		{Beta: 2.5, Eta: 4000, MTTR: 8},
	}
	topo := models.Topology{Horizon: 3000}
	topo.Kind = models.TopologyStandby
	standby, err := newModel().Compose(units, topo)
	require.NoError(t, err)
	topo.Kind = models.TopologyActive
	active, err := newModel().Compose(units, topo)
	require.NoError(t, err)
	assert.Greater(t, standby.Reliability, active.Reliability)
}

func TestComposeLoadSharing(t *testing.T) {
	res, err := newModel().Compose([]models.RamMetric{
		{MTBF: 2000, MTTR: 10},
		{MTBF: 2000, MTTR: 10},
		{MTBF: 2000, MTTR: 10},
	}, models.Topology{Kind: models.TopologyLoadSharing, Required: 2, Horizon: 500})
	require.NoError(t, err)
	x := 3 * 0.0005 * 500
	assert.InDelta(t, math.Exp(-x)*(1+x), res.Reliability, 1e-12)
	assert.True(t, res.HasReliability)
}

func TestComposeDerivesMissingValues(t *testing.T) {
	res, err := newModel().Compose([]models.RamMetric{
		{Name: "pump", MTTR: 10, Availability: 0.99},
	}, models.Topology{Horizon: 100})
	require.NoError(t, err)
	pump := res.Components[0]
	assert.InDelta(t, 990, pump.MTBF, 1e-9)
	assert.InDelta(t, 1.0/990, pump.FailureRate, 1e-12)
	assert.InDelta(t, math.Exp(-100.0/990), pump.Reliability, 1e-12)
	assert.Equal(t, 100.0, pump.Horizon)
}

func TestComposeRejectsBadInput(t *testing.T) {
	model := newModel()
	cases := []struct {
		name       string
		components []models.RamMetric
		topology   models.Topology
	}{
		{"empty", nil, models.Topology{}},
		{"unknown kind", []models.RamMetric{{Availability: 0.9}}, models.Topology{Kind: "mesh"}},
		{"availability above one", []models.RamMetric{{Availability: 1.2}}, models.Topology{}},
		{"negative mtbf", []models.RamMetric{{MTBF: -5, MTTR: 1}}, models.Topology{}},
		{"no availability", []models.RamMetric{{MTBF: 100}}, models.Topology{}},
		{"beta without eta", []models.RamMetric{{Beta: 2, Availability: 0.9}}, models.Topology{}},
		{"too many required", []models.RamMetric{{Availability: 0.9}}, models.Topology{Kind: models.TopologyActive, Required: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := model.Compose(tc.components, tc.topology)
			require.ErrorIs(t, err, utils.ErrValidation)
		})
	}

	_, err := model.Compose([]models.RamMetric{{Availability: 0.9}, {Availability: 1.5}}, models.Topology{})
	assert.Contains(t, err.Error(), "components[1].availability")
}

func TestAtLeastEdges(t *testing.T) {
	assert.InDelta(t, 1, atLeast([]float64{0.3, 0.4}, 0), 1e-12)
	assert.InDelta(t, 0.12, atLeast([]float64{0.3, 0.4}, 2), 1e-12)
	assert.InDelta(t, 0, atLeast([]float64{0.3}, 2), 1e-12)
}

func TestComposeRestatesReliabilityAtTopologyHorizon(t *testing.T) {
	model := newModel()
	series := models.Topology{Kind: models.TopologySeries, Horizon: 1000}

	res, err := model.Compose([]models.RamMetric{
		{Availability: 0.99, Reliability: 0.9, Horizon: 100, FailureRate: 0.001},
	}, series)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, res.Topology.Horizon)
	assert.InDelta(t, math.Exp(-1), res.Reliability, 1e-12)
	assert.InDelta(t, math.Exp(-1), res.Components[0].Reliability, 1e-12)

	res, err = model.Compose([]models.RamMetric{
		{Availability: 0.99, Reliability: 0.99, Horizon: 100, Beta: 2, Eta: 1000},
	}, series)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-1), res.Reliability, 1e-12)

	// same horizon keeps the stated value
	res, err = model.Compose([]models.RamMetric{
		{Availability: 0.99, Reliability: 0.9, Horizon: 1000, FailureRate: 0.001},
	}, series)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, res.Reliability, 1e-12)

	_, err = model.Compose([]models.RamMetric{
		{Availability: 0.99, Reliability: 0.9, Horizon: 100},
	}, series)
	require.ErrorIs(t, err, utils.ErrValidation)
	assert.Contains(t, err.Error(), "components[0].reliability")
}
