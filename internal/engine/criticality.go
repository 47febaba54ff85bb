package engine

import (
	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/policy"
)

const opScore = "score_criticality"

type ratingInput struct {
	Severity   int `json:"severity" validate:"min=1,max=10"`
	Occurrence int `json:"occurrence" validate:"min=1,max=10"`
	Detection  int `json:"detection" validate:"min=1,max=10"`
}

// Scorer computes FMECA risk priority numbers. It is stateless and safe for concurrent use.
type Scorer struct {
	bands policy.CriticalityPolicy
}

// NewScorer constructs a Scorer applying the given RPN bands.
func NewScorer(bands policy.CriticalityPolicy) *Scorer {
	return &Scorer{bands: bands}
}

// Score returns the RPN and criticality index for one failure mode.
func (s *Scorer) Score(severity, occurrence, detection int) (models.Criticality, error) {
	in := ratingInput{Severity: severity, Occurrence: occurrence, Detection: detection}
	if err := validate.Struct(in); err != nil {
		return models.Criticality{}, validationError(opScore, err)
	}

	rpn := severity * occurrence * detection
	return models.Criticality{
		Severity:   severity,
		Occurrence: occurrence,
		Detection:  detection,
		RPN:        rpn,
		Index:      s.Classify(rpn),
	}, nil
}

// Classify maps an RPN onto its band. Bounds are inclusive lower limits.
func (s *Scorer) Classify(rpn int) models.CriticalityIndex {
	switch {
	case rpn >= s.bands.Critical:
		return models.CriticalityCritical
	case rpn >= s.bands.High:
		return models.CriticalityHigh
	case rpn >= s.bands.Medium:
		return models.CriticalityMedium
	}
	return models.CriticalityLow
}
