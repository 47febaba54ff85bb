package engine

import (
	"math"

	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/policy"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

const (
	opEvaluate = "evaluate_reliability"
	opFit      = "fit_weibull"
	opCompose  = "compose_system"
)

// ReliabilityModel evaluates, fits and composes Weibull reliability models.
type ReliabilityModel struct {
	policy policy.ReliabilityPolicy
}

// NewReliabilityModel constructs a model using the given sampling and classification policy.
func NewReliabilityModel(p policy.ReliabilityPolicy) *ReliabilityModel {
	return &ReliabilityModel{policy: p}
}

// Reliability is R(t) = exp(-(t/eta)^beta).
func Reliability(beta, eta, t float64) float64 {
	if t <= 0 {
		return 1
	}
	return math.Exp(-math.Pow(t/eta, beta))
}

// Unreliability is F(t) = 1 - R(t), computed without cancellation for small t.
func Unreliability(beta, eta, t float64) float64 {
	if t <= 0 {
		return 0
	}
	return -math.Expm1(-math.Pow(t/eta, beta))
}

// Hazard is h(t) = (beta/eta)(t/eta)^(beta-1). At t=0 it is +Inf for beta<1, 1/eta for beta=1
// and 0 for beta>1.
func Hazard(beta, eta, t float64) float64 {
	if t <= 0 {
		switch {
		case beta < 1:
			return math.Inf(1)
		case beta == 1:
			return 1 / eta
		}
		return 0
	}
	return (beta / eta) * math.Pow(t/eta, beta-1)
}

// MeanLife is eta * Gamma(1 + 1/beta), the MTBF of the distribution.
func MeanLife(beta, eta float64) float64 {
	return eta * math.Gamma(1+1/beta)
}

// Quantile returns the time by which fraction p of the population has failed.
func Quantile(beta, eta, p float64) float64 {
	return eta * math.Pow(-math.Log1p(-p), 1/beta)
}

func (m *ReliabilityModel) checkParams(op string, params models.WeibullParameters) (utils.TimeUnit, error) {
	if err := checkPositive(op, "beta", params.Beta); err != nil {
		return "", err
	}
	if err := checkPositive(op, "eta", params.Eta); err != nil {
		return "", err
	}
	if !(params.Horizon > 0) || math.IsInf(params.Horizon, 0) {
		return "", utils.Validation(op, "horizon", params.Horizon, "must be a positive finite number")
	}
	unit, err := utils.ParseTimeUnit(params.TimeUnit)
	if err != nil {
		return "", utils.Validation(op, "timeUnit", params.TimeUnit, err.Error())
	}
	return unit, nil
}

// Evaluate samples R, F, h and f over [0, horizon] at resolution+1 evenly spaced points and
// reports the MTBF.
func (m *ReliabilityModel) Evaluate(params models.WeibullParameters, resolution int) (models.Curve, error) {
	unit, err := m.checkParams(opEvaluate, params)
	if err != nil {
		return models.Curve{}, err
	}
	maxRes := m.policy.MaxResolution
	if maxRes <= 0 {
		maxRes = policy.Default().Reliability.MaxResolution
	}
	if resolution < 1 || resolution > maxRes {
		return models.Curve{}, utils.Validation(opEvaluate, "resolution", resolution, "must be within [1, max resolution]")
	}
	params.TimeUnit = string(unit)

	beta, eta := params.Beta, params.Eta
	points := make([]models.CurvePoint, 0, resolution+1)
	for i := 0; i <= resolution; i++ {
		t := params.Horizon * float64(i) / float64(resolution)
		r := Reliability(beta, eta, t)
		h := Hazard(beta, eta, t)
		points = append(points, models.CurvePoint{
			T:             t,
			Reliability:   r,
			Unreliability: Unreliability(beta, eta, t),
			Hazard:        h,
			Density:       h * r,
		})
	}

	return models.Curve{
		Parameters: params,
		Points:     points,
		MTBF:       MeanLife(beta, eta),
	}, nil
}

// Classify labels a shape parameter using the configured random-failure band.
func (m *ReliabilityModel) Classify(beta float64) models.FailurePattern {
	lower, upper := m.policy.RandomLower, m.policy.RandomUpper
	if lower <= 0 || upper <= 0 {
		def := policy.Default().Reliability
		lower, upper = def.RandomLower, def.RandomUpper
	}
	switch {
	case beta < lower:
		return models.PatternEarlyLife
	case beta > upper:
		return models.PatternWearOut
	}
	return models.PatternRandom
}
