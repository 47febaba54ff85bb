package models

// WeibullParameters describe a two-parameter Weibull life distribution.
type WeibullParameters struct {
	Beta     float64 `json:"beta" yaml:"beta"`
	Eta      float64 `json:"eta" yaml:"eta"`
	TimeUnit string  `json:"timeUnit,omitempty" yaml:"timeUnit"`
	Horizon  float64 `json:"horizon" yaml:"horizon"`
}

// CurvePoint is one sample of the reliability functions.
type CurvePoint struct {
	T             float64 `json:"t"`
	Reliability   float64 `json:"reliability"`
	Unreliability float64 `json:"unreliability"`
	// Hazard is +Inf at t=0 when beta < 1.
	Hazard  float64 `json:"hazard"`
	Density float64 `json:"density"`
}

// Curve is the sampled closed-form evaluation of a Weibull model.
type Curve struct {
	Parameters WeibullParameters `json:"parameters"`
	Points     []CurvePoint      `json:"points"`
	MTBF       float64           `json:"mtbf"`
}

// Observation is one time-to-failure, or a right-censored survival time when Censored.
type Observation struct {
	Time     float64 `json:"time" yaml:"time"`
	Censored bool    `json:"censored,omitempty" yaml:"censored"`
}

// FailurePattern is the informational hazard classification of a fitted beta.
type FailurePattern string

const (
	PatternEarlyLife FailurePattern = "early-life"
	PatternRandom    FailurePattern = "random"
	PatternWearOut   FailurePattern = "wear-out"
)

// FitResult is the outcome of median-rank regression on failure history.
type FitResult struct {
	Beta        float64        `json:"beta"`
	Eta         float64        `json:"eta"`
	R2          float64        `json:"r2"`
	B10         float64        `json:"b10"`
	B50         float64        `json:"b50"`
	MTBF        float64        `json:"mtbf"`
	Pattern     FailurePattern `json:"pattern"`
	Failures    int            `json:"failures"`
	Suspensions int            `json:"suspensions"`
}

// RamMetric is the per-component reliability/availability snapshot. Zero fields are
// treated as not supplied and derived from the others where possible.
type RamMetric struct {
	Name         string  `json:"name,omitempty" yaml:"name"`
	FailureRate  float64 `json:"failureRate,omitempty" yaml:"failureRate" validate:"gte=0"`
	MTBF         float64 `json:"mtbf,omitempty" yaml:"mtbf" validate:"gte=0"`
	MTTR         float64 `json:"mttr,omitempty" yaml:"mttr" validate:"gte=0"`
	Availability float64 `json:"availability,omitempty" yaml:"availability" validate:"gte=0,lte=1"`
	Reliability  float64 `json:"reliability,omitempty" yaml:"reliability" validate:"gte=0,lte=1"`
	Horizon      float64 `json:"horizon,omitempty" yaml:"horizon" validate:"gte=0"`
	Beta         float64 `json:"beta,omitempty" yaml:"beta" validate:"gte=0"`
	Eta          float64 `json:"eta,omitempty" yaml:"eta" validate:"gte=0"`
}

// TopologyKind names a redundancy arrangement.
type TopologyKind string

const (
	TopologySeries      TopologyKind = "series"
	TopologyActive      TopologyKind = "active"
	TopologyStandby     TopologyKind = "standby"
	TopologyLoadSharing TopologyKind = "load-sharing"
	TopologyVoting2oo3  TopologyKind = "voting-2oo3"
)

// Topology states how unit results compose. Required is N for active and load-sharing
// arrangements; Horizon overrides the per-unit horizons when set.
type Topology struct {
	Kind     TopologyKind `json:"kind" yaml:"kind"`
	Required int          `json:"required,omitempty" yaml:"required"`
	Horizon  float64      `json:"horizon,omitempty" yaml:"horizon"`
}

// SystemRamResult is the composed system-level metric.
type SystemRamResult struct {
	Topology       Topology    `json:"topology"`
	Reliability    float64     `json:"reliability"`
	HasReliability bool        `json:"hasReliability"`
	Availability   float64     `json:"availability"`
	MTBF           float64     `json:"mtbf"`
	MTTR           float64     `json:"mttr"`
	FailureRate    float64     `json:"failureRate"`
	Components     []RamMetric `json:"components"`
}

// AsMetric lets a composed result feed a higher composition level.
func (r SystemRamResult) AsMetric(name string) RamMetric {
	m := RamMetric{
		Name:         name,
		FailureRate:  r.FailureRate,
		MTBF:         r.MTBF,
		MTTR:         r.MTTR,
		Availability: r.Availability,
		Horizon:      r.Topology.Horizon,
	}
	if r.HasReliability {
		m.Reliability = r.Reliability
	}
	return m
}
