package api

import (
	"github.com/miradorstack/mirador-rcm/internal/history"
	"github.com/miradorstack/mirador-rcm/internal/models"
)

// ScoreCriticalityRequest carries the three 1-10 FMECA ratings.
type ScoreCriticalityRequest struct {
	FailureModeID string `json:"failureModeId,omitempty"`
	Severity      int    `json:"severity"`
	Occurrence    int    `json:"occurrence"`
	Detection     int    `json:"detection"`
}

// UpsertCriticalityRequest scores a failure mode and persists the rating.
type UpsertCriticalityRequest struct {
	FailureModeID   string `json:"failureModeId"`
	Severity        int    `json:"severity"`
	Occurrence      int    `json:"occurrence"`
	Detection       int    `json:"detection"`
	ConsequenceType string `json:"consequenceType,omitempty"`
}

// UpsertCriticalityResponse reports the stored record and whether it was new.
type UpsertCriticalityResponse struct {
	Criticality models.Criticality `json:"criticality"`
	Created     bool               `json:"created"`
}

// DecideStrategyRequest carries the consequence flags plus optional sizing inputs.
type DecideStrategyRequest struct {
	Flags       models.ConsequenceFlags   `json:"flags"`
	Criticality *models.Criticality       `json:"criticality,omitempty"`
	Reliability *models.WeibullParameters `json:"reliability,omitempty"`
	MTBF        float64                   `json:"mtbf,omitempty"`
}

// EvaluateReliabilityRequest samples a Weibull model over [0, horizon].
type EvaluateReliabilityRequest struct {
	Parameters models.WeibullParameters `json:"parameters"`
	Resolution int                      `json:"resolution"`
}

// CurvePoint mirrors models.CurvePoint with hazard and density able to carry +Inf at t=0.
type CurvePoint struct {
	T             float64 `json:"t"`
	Reliability   float64 `json:"reliability"`
	Unreliability float64 `json:"unreliability"`
	Hazard        Float   `json:"hazard"`
	Density       Float   `json:"density"`
}

// EvaluateReliabilityResponse is the sampled curve.
type EvaluateReliabilityResponse struct {
	Parameters models.WeibullParameters `json:"parameters"`
	Points     []CurvePoint             `json:"points"`
	MTBF       float64                  `json:"mtbf"`
}

// FailureEvent is a recorded failure with RFC3339 timestamps.
type FailureEvent struct {
	FailureModeID string `json:"failureModeId,omitempty"`
	ComponentID   string `json:"componentId,omitempty"`
	FailedAt      string `json:"failedAt"`
	RestoredAt    string `json:"restoredAt,omitempty"`
}

// FitWeibullRequest supplies either observations directly or failure events with a window.
// Events spanning several failure modes need FailureModeID to pick the one to fit.
type FitWeibullRequest struct {
	Observations  []models.Observation `json:"observations,omitempty"`
	Events        []FailureEvent       `json:"events,omitempty"`
	FailureModeID string               `json:"failureModeId,omitempty"`
	WindowStart   string               `json:"windowStart,omitempty"`
	WindowEnd     string               `json:"windowEnd,omitempty"`
	TimeUnit      string               `json:"timeUnit,omitempty"`
}

// FitWeibullResponse holds the fitted model and, for event input, the failure mode fitted and
// its empirical summary.
type FitWeibullResponse struct {
	Fit           models.FitResult `json:"fit"`
	FailureModeID string           `json:"failureModeId,omitempty"`
	Summary       *history.Summary `json:"summary,omitempty"`
}

// ComposeSystemRequest aggregates component metrics under one topology.
type ComposeSystemRequest struct {
	Components []models.RamMetric `json:"components"`
	Topology   models.Topology    `json:"topology"`
}

// HierarchyNode is one node of a component tree. Parent is the parent's key, empty for roots.
// Leaves carry a Metric; parents may carry a Topology.
type HierarchyNode struct {
	Key      string            `json:"key"`
	SystemID string            `json:"systemId"`
	Name     string            `json:"name,omitempty"`
	Parent   string            `json:"parent,omitempty"`
	Metric   *models.RamMetric `json:"metric,omitempty"`
	Topology *models.Topology  `json:"topology,omitempty"`
}

// ComposeHierarchyRequest rolls a tree of components up to Root. Parents must be listed
// before their children.
type ComposeHierarchyRequest struct {
	Nodes []HierarchyNode `json:"nodes"`
	Root  string          `json:"root,omitempty"`
}

// ComposeHierarchyResponse holds the composed result of every parent node, keyed by node key.
type ComposeHierarchyResponse struct {
	Root    string                            `json:"root"`
	Results map[string]models.SystemRamResult `json:"results"`
}

// HealthRequest is empty.
type HealthRequest struct{}

// HealthResponse reports liveness plus the policy and store in effect.
type HealthResponse struct {
	Status        string `json:"status"`
	PolicyReloads int64  `json:"policyReloads"`
	RecordStore   string `json:"recordStore"`
	Memoization   bool   `json:"memoization"`
}
