package models

import "time"

// FailureMode identifies a specific way a component function fails.
type FailureMode struct {
	ID              string
	ComponentID     string
	Description     string
	Cause           string
	LocalEffect     string
	SystemEffect    string
	EndEffect       string
	DetectionMethod string
	Predictable     *bool
	CostOfFailure   *float64
}

// CriticalityIndex is the four-tier classification derived from the RPN.
type CriticalityIndex string

const (
	CriticalityLow      CriticalityIndex = "Low"
	CriticalityMedium   CriticalityIndex = "Medium"
	CriticalityHigh     CriticalityIndex = "High"
	CriticalityCritical CriticalityIndex = "Critical"
)

// Rank orders indices so callers can compare them; unknown values rank 0.
func (c CriticalityIndex) Rank() int {
	switch c {
	case CriticalityLow:
		return 1
	case CriticalityMedium:
		return 2
	case CriticalityHigh:
		return 3
	case CriticalityCritical:
		return 4
	}
	return 0
}

// Criticality is the FMECA rating of one failure mode. At most one exists per FailureMode.
type Criticality struct {
	ID              string           `json:"id,omitempty"`
	FailureModeID   string           `json:"failureModeId,omitempty"`
	Severity        int              `json:"severity"`
	Occurrence      int              `json:"occurrence"`
	Detection       int              `json:"detection"`
	RPN             int              `json:"rpn"`
	Index           CriticalityIndex `json:"criticalityIndex"`
	ConsequenceType string           `json:"consequenceType,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt,omitempty"`
}
