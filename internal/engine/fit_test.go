package engine

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

func failures(times ...float64) []models.Observation {
	out := make([]models.Observation, len(times))
	for i, t := range times {
		out[i] = models.Observation{Time: t}
	}
	return out
}

func TestFitSmallSample(t *testing.T) {
	res, err := newModel().Fit(failures(800, 120, 1400, 340, 560))
	require.NoError(t, err)

	assert.InDelta(t, 1.111, res.Beta, 0.001)
	assert.InDelta(t, 747.3, res.Eta, 0.1)
	assert.Greater(t, res.R2, 0.99)
	assert.Equal(t, models.PatternWearOut, res.Pattern)
	assert.Equal(t, 5, res.Failures)
	assert.Zero(t, res.Suspensions)
	assert.Less(t, res.B10, res.B50)
	assert.InDelta(t, 0.9, Reliability(res.Beta, res.Eta, res.B10), 1e-9)
}

func TestFitRecoversSyntheticParameters(t *testing.T) {
	cases := []struct{ beta, eta float64 }{
		{0.7, 300},
		{1.0, 1200},
		{3.5, 8000},
	}
	for _, tc := range cases {
		n := 25
		obs := make([]models.Observation, n)
		for i := range obs {
			// median-rank plotting positions of a sample drawn from the distribution
			f := (float64(i+1) - 0.3) / (float64(n) + 0.4)
			obs[i] = models.Observation{Time: Quantile(tc.beta, tc.eta, f)}
		}
		res, err := newModel().Fit(obs)
		require.NoError(t, err)
		assert.InEpsilon(t, tc.beta, res.Beta, 0.05)
		assert.InEpsilon(t, tc.eta, res.Eta, 0.05)
		assert.Greater(t, res.R2, 0.95)
	}
}

func TestFitRecoversParametersFromRandomSample(t *testing.T) {
	cases := []struct{ beta, eta float64 }{
		{0.7, 300},
		{1.0, 1200},
		{3.5, 8000},
	}
	for _, tc := range cases {
		r := rand.New(rand.NewSource(42))
		obs := make([]models.Observation, 20000)
		for i := range obs {
			// eta * E^(1/beta) is Weibull distributed when E is a unit exponential
			obs[i] = models.Observation{Time: tc.eta * math.Pow(r.ExpFloat64(), 1/tc.beta)}
		}
		res, err := newModel().Fit(obs)
		require.NoError(t, err)
		assert.InEpsilon(t, tc.beta, res.Beta, 0.05)
		assert.InEpsilon(t, tc.eta, res.Eta, 0.05)
		assert.Greater(t, res.R2, 0.95)
	}
}

func TestFitWithSuspensions(t *testing.T) {
	obs := []models.Observation{
		{Time: 150}, {Time: 340, Censored: true}, {Time: 560}, {Time: 800},
		{Time: 1100, Censored: true}, {Time: 1400}, {Time: 1400, Censored: true},
	}
	res, err := newModel().Fit(obs)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Failures)
	assert.Equal(t, 3, res.Suspensions)
	assert.Greater(t, res.Beta, 0.0)

	complete, err := newModel().Fit(failures(150, 560, 800, 1400))
	require.NoError(t, err)
	// survivors push the characteristic life out
	assert.Greater(t, res.Eta, complete.Eta)
}

func TestFitInsufficientData(t *testing.T) {
	model := newModel()
	for name, obs := range map[string][]models.Observation{
		"empty":          nil,
		"single failure": failures(100),
		"same time":      failures(100, 100, 100),
		"one failure and suspensions": {
			{Time: 100}, {Time: 200, Censored: true}, {Time: 300, Censored: true},
		},
	} {
		_, err := model.Fit(obs)
		require.ErrorIs(t, err, utils.ErrInsufficientData, name)
	}
}

func TestFitRejectsNonPositiveTimes(t *testing.T) {
	_, err := newModel().Fit(failures(100, 0, 300))
	require.ErrorIs(t, err, utils.ErrValidation)
	assert.Contains(t, err.Error(), "observations[1]")
}
