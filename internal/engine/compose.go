package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/policy"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

// unit is a RamMetric after missing values have been derived.
type unit struct {
	metric  models.RamMetric
	hasRel  bool
	weibull bool
}

func (u unit) lambda() float64 { return u.metric.FailureRate }

// exponential reports whether the unit has a constant failure rate.
func (u unit) exponential() bool {
	if u.weibull {
		return u.metric.Beta == 1
	}
	return u.lambda() > 0
}

// hasLife reports whether the unit carries a life distribution usable for convolution.
func (u unit) hasLife() bool { return u.weibull || u.lambda() > 0 }

func (u unit) cdf(t float64) float64 {
	if u.weibull {
		return Unreliability(u.metric.Beta, u.metric.Eta, t)
	}
	if t <= 0 {
		return 0
	}
	return -math.Expm1(-u.lambda() * t)
}

// Compose aggregates per-unit metrics into a system result for the given topology.
func (m *ReliabilityModel) Compose(components []models.RamMetric, topology models.Topology) (models.SystemRamResult, error) {
	if len(components) == 0 {
		return models.SystemRamResult{}, utils.Validation(opCompose, "components", 0, "at least one component is required")
	}
	switch topology.Kind {
	case "", "none":
		topology.Kind = models.TopologySeries
	case models.TopologySeries, models.TopologyActive, models.TopologyStandby,
		models.TopologyLoadSharing, models.TopologyVoting2oo3:
	default:
		return models.SystemRamResult{}, utils.Validation(opCompose, "topology.kind", topology.Kind, "unknown redundancy topology")
	}
	if topology.Required < 0 {
		return models.SystemRamResult{}, utils.Validation(opCompose, "topology.required", topology.Required, "must not be negative")
	}
	if !(topology.Horizon >= 0) || math.IsInf(topology.Horizon, 0) {
		return models.SystemRamResult{}, utils.Validation(opCompose, "topology.horizon", topology.Horizon, "must be a non-negative finite number")
	}

	units := make([]unit, 0, len(components))
	for i, c := range components {
		u, err := normalize(i, c, topology.Horizon)
		if err != nil {
			return models.SystemRamResult{}, err
		}
		units = append(units, u)
	}

	result := models.SystemRamResult{Topology: topology}
	var err error
	switch topology.Kind {
	case models.TopologySeries:
		composeSeries(units, &result)
	case models.TopologyActive:
		err = m.composeActive(units, requiredOrOne(topology.Required), &result)
	case models.TopologyVoting2oo3:
		if len(units) != 3 {
			return models.SystemRamResult{}, utils.Validation(opCompose, "components", len(units), "2-of-3 voting needs exactly three units")
		}
		if topology.Required != 0 && topology.Required != 2 {
			return models.SystemRamResult{}, utils.Validation(opCompose, "topology.required", topology.Required, "2-of-3 voting requires two units")
		}
		result.Topology.Required = 2
		err = m.composeActive(units, 2, &result)
	case models.TopologyStandby:
		m.composeStandby(units, &result)
	case models.TopologyLoadSharing:
		err = m.composeLoadSharing(units, requiredOrOne(topology.Required), &result)
	}
	if err != nil {
		return models.SystemRamResult{}, err
	}

	result.Reliability = clamp01(result.Reliability)
	result.Availability = clamp01(result.Availability)
	result.Components = make([]models.RamMetric, len(units))
	for i, u := range units {
		result.Components[i] = u.metric
	}
	if result.Topology.Horizon == 0 {
		result.Topology.Horizon = commonHorizon(units)
	}
	return result, nil
}

func requiredOrOne(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// normalize validates one component and derives the values it left at zero.
func normalize(i int, c models.RamMetric, horizon float64) (unit, error) {
	prefix := fmt.Sprintf("components[%d].", i)
	if err := validate.Struct(c); err != nil {
		return unit{}, withFieldPrefix(validationError(opCompose, err), prefix)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"failureRate", c.FailureRate}, {"mtbf", c.MTBF}, {"mttr", c.MTTR},
		{"horizon", c.Horizon}, {"beta", c.Beta}, {"eta", c.Eta},
	} {
		if !finite(f.v) {
			return unit{}, utils.Validation(opCompose, prefix+f.name, f.v, "must be finite")
		}
	}
	if (c.Beta > 0) != (c.Eta > 0) {
		return unit{}, utils.Validation(opCompose, prefix+"beta", c.Beta, "beta and eta must be supplied together")
	}

	u := unit{metric: c, weibull: c.Beta > 0}
	m := &u.metric
	if horizon > 0 {
		if m.Reliability > 0 && m.Horizon > 0 && m.Horizon != horizon {
			// a stated reliability only holds at its own horizon; restate it from the life model
			if !u.weibull && c.FailureRate == 0 && c.MTBF == 0 {
				return unit{}, utils.Validation(opCompose, prefix+"reliability", c.Reliability,
					"reliability is stated at a different horizon and no life model is supplied to restate it")
			}
			m.Reliability = 0
		}
		m.Horizon = horizon
	}

	switch {
	case m.MTBF == 0 && m.FailureRate > 0:
		m.MTBF = 1 / m.FailureRate
	case m.MTBF == 0 && u.weibull:
		m.MTBF = MeanLife(m.Beta, m.Eta)
	}
	if m.FailureRate == 0 && m.MTBF > 0 {
		m.FailureRate = 1 / m.MTBF
	}
	if m.MTBF == 0 && m.MTTR > 0 && m.Availability > 0 && m.Availability < 1 {
		m.MTBF = m.MTTR * m.Availability / (1 - m.Availability)
		m.FailureRate = 1 / m.MTBF
	}
	if m.MTTR == 0 && m.MTBF > 0 && m.Availability > 0 && m.Availability < 1 {
		m.MTTR = m.MTBF * (1 - m.Availability) / m.Availability
	}
	if m.Availability == 0 && m.MTBF > 0 && m.MTTR > 0 {
		m.Availability = m.MTBF / (m.MTBF + m.MTTR)
	}
	if m.Availability == 0 {
		return unit{}, utils.Validation(opCompose, prefix+"availability", c.Availability,
			"availability is not supplied and cannot be derived from mtbf and mttr")
	}

	switch {
	case m.Reliability > 0:
		u.hasRel = true
	case m.Horizon > 0 && u.weibull:
		m.Reliability = Reliability(m.Beta, m.Eta, m.Horizon)
		u.hasRel = true
	case m.Horizon > 0 && m.FailureRate > 0:
		m.Reliability = math.Exp(-m.FailureRate * m.Horizon)
		u.hasRel = true
	}
	return u, nil
}

func withFieldPrefix(err error, prefix string) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) && appErr.Field != "" {
		appErr.Field = prefix + appErr.Field
	}
	return err
}

func allReliable(units []unit) bool {
	for _, u := range units {
		if !u.hasRel {
			return false
		}
	}
	return true
}

// commonHorizon returns the horizon shared by every unit, or 0 when they differ.
func commonHorizon(units []unit) float64 {
	h := units[0].metric.Horizon
	for _, u := range units[1:] {
		if u.metric.Horizon != h {
			return 0
		}
	}
	return h
}

func composeSeries(units []unit, out *models.SystemRamResult) {
	out.Availability = 1
	out.HasReliability = allReliable(units)
	if out.HasReliability {
		out.Reliability = 1
	}

	var lambda, weighted float64
	rates, repairs := true, true
	for _, u := range units {
		out.Availability *= u.metric.Availability
		if out.HasReliability {
			out.Reliability *= u.metric.Reliability
		}
		if u.lambda() <= 0 {
			rates = false
			continue
		}
		lambda += u.lambda()
		if u.metric.MTTR <= 0 {
			repairs = false
		}
		weighted += u.lambda() * u.metric.MTTR
	}
	if !rates || lambda == 0 {
		return
	}
	out.FailureRate = lambda
	out.MTBF = 1 / lambda
	if repairs {
		out.MTTR = weighted / lambda
	} else if out.Availability < 1 {
		out.MTTR = out.MTBF * (1 - out.Availability) / out.Availability
	}
}

func (m *ReliabilityModel) composeActive(units []unit, required int, out *models.SystemRamResult) error {
	if required > len(units) {
		return utils.Validation(opCompose, "topology.required", required, "cannot require more units than supplied")
	}
	out.Topology.Required = required
	avail := make([]float64, len(units))
	for i, u := range units {
		avail[i] = u.metric.Availability
	}
	out.Availability = atLeast(avail, required)
	if allReliable(units) {
		rel := make([]float64, len(units))
		for i, u := range units {
			rel[i] = u.metric.Reliability
		}
		out.Reliability = atLeast(rel, required)
		out.HasReliability = true
	}
	redundantRepair(units, out)
	return nil
}

func (m *ReliabilityModel) composeStandby(units []unit, out *models.SystemRamResult) {
	unavail := 1.0
	for _, u := range units {
		unavail *= 1 - u.metric.Availability
	}
	out.Availability = 1 - unavail
	out.Topology.Required = 1

	t := out.Topology.Horizon
	if t == 0 {
		t = commonHorizon(units)
	}
	if t > 0 {
		if lambda, ok := identicalExponential(units); ok {
			out.Reliability = poissonTail(lambda*t, len(units)-1)
			out.HasReliability = true
		} else if allHaveLife(units) {
			steps := m.policy.StandbySteps
			if steps <= 0 {
				steps = policy.Default().Reliability.StandbySteps
			}
			out.Reliability = convolveStandby(units, t, steps)
			out.HasReliability = true
		}
	}
	redundantRepair(units, out)
}

func (m *ReliabilityModel) composeLoadSharing(units []unit, required int, out *models.SystemRamResult) error {
	if required > len(units) {
		return utils.Validation(opCompose, "topology.required", required, "cannot require more units than supplied")
	}
	out.Topology.Required = required
	avail := make([]float64, len(units))
	for i, u := range units {
		avail[i] = u.metric.Availability
	}
	out.Availability = atLeast(avail, required)

	t := out.Topology.Horizon
	if t == 0 {
		t = commonHorizon(units)
	}
	if t > 0 && allExponential(units) {
		var mean float64
		for _, u := range units {
			mean += u.exponentialRate()
		}
		mean /= float64(len(units))
		n := float64(len(units))
		out.Reliability = poissonTail(n*mean*t, len(units)-required)
		out.HasReliability = true
	}
	redundantRepair(units, out)
	return nil
}

// exponentialRate is lambda for exponential units, 1/eta for a Weibull unit with beta 1.
func (u unit) exponentialRate() float64 {
	if u.weibull {
		return 1 / u.metric.Eta
	}
	return u.lambda()
}

func allExponential(units []unit) bool {
	for _, u := range units {
		if !u.exponential() {
			return false
		}
	}
	return true
}

func allHaveLife(units []unit) bool {
	for _, u := range units {
		if !u.hasLife() {
			return false
		}
	}
	return true
}

// identicalExponential returns the shared rate when every unit is exponential with the same rate.
func identicalExponential(units []unit) (float64, bool) {
	if !allExponential(units) {
		return 0, false
	}
	lambda := units[0].exponentialRate()
	for _, u := range units[1:] {
		if math.Abs(u.exponentialRate()-lambda) > 1e-12*lambda {
			return 0, false
		}
	}
	return lambda, true
}

// redundantRepair sets MTTR = 1/sum(1/MTTRi) and back-solves MTBF from the system availability.
func redundantRepair(units []unit, out *models.SystemRamResult) {
	var inv float64
	for _, u := range units {
		if u.metric.MTTR <= 0 {
			return
		}
		inv += 1 / u.metric.MTTR
	}
	out.MTTR = 1 / inv
	if out.Availability <= 0 || out.Availability >= 1 {
		return
	}
	out.MTBF = out.MTTR * out.Availability / (1 - out.Availability)
	out.FailureRate = 1 / out.MTBF
}

// atLeast returns the probability that at least k of the independent events with the given
// probabilities occur. For equal probabilities it equals the binomial sum.
func atLeast(ps []float64, k int) float64 {
	dist := make([]float64, len(ps)+1)
	dist[0] = 1
	for i, p := range ps {
		for j := i + 1; j >= 1; j-- {
			dist[j] = dist[j]*(1-p) + dist[j-1]*p
		}
		dist[0] *= 1 - p
	}
	var sum float64
	for j := k; j < len(dist); j++ {
		sum += dist[j]
	}
	return sum
}

// poissonTail is sum_{j=0}^{k} e^-x x^j / j!.
func poissonTail(x float64, k int) float64 {
	term := math.Exp(-x)
	sum := term
	for j := 1; j <= k; j++ {
		term *= x / float64(j)
		sum += term
	}
	return sum
}

// convolveStandby returns P(T1 + ... + Tn > t) for independent unit lifetimes, convolving the
// cumulative distribution of the partial sum over a grid of steps cells on [0, t].
func convolveStandby(units []unit, t float64, steps int) float64 {
	dt := t / float64(steps)
	cdf := make([]float64, steps+1)
	for j := range cdf {
		cdf[j] = units[0].cdf(float64(j) * dt)
	}

	mass := make([]float64, steps)
	for _, u := range units[1:] {
		for k := range mass {
			mass[k] = u.cdf(float64(k+1)*dt) - u.cdf(float64(k)*dt)
		}
		next := make([]float64, steps+1)
		for j := 1; j <= steps; j++ {
			var s float64
			for k := 0; k < j; k++ {
				// the partial-sum CDF at the cell midpoint, by linear interpolation
				s += mass[k] * 0.5 * (cdf[j-k] + cdf[j-k-1])
			}
			next[j] = s
		}
		cdf = next
	}
	return clamp01(1 - cdf[steps])
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
