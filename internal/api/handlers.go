package api

import (
	"fmt"
	"time"

	"github.com/miradorstack/mirador-rcm/internal/hierarchy"
	"github.com/miradorstack/mirador-rcm/internal/history"
	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

const opDecode = "decode_request"

// ToCurveResponse converts an engine curve into its wire form.
func ToCurveResponse(c models.Curve) *EvaluateReliabilityResponse {
	points := make([]CurvePoint, 0, len(c.Points))
	for _, p := range c.Points {
		points = append(points, CurvePoint{
			T:             p.T,
			Reliability:   p.Reliability,
			Unreliability: p.Unreliability,
			Hazard:        Float(p.Hazard),
			Density:       Float(p.Density),
		})
	}
	return &EvaluateReliabilityResponse{Parameters: c.Parameters, Points: points, MTBF: c.MTBF}
}

// FromCurveResponse converts a wire curve back into the engine form.
func FromCurveResponse(r *EvaluateReliabilityResponse) models.Curve {
	if r == nil {
		return models.Curve{}
	}
	points := make([]models.CurvePoint, 0, len(r.Points))
	for _, p := range r.Points {
		points = append(points, models.CurvePoint{
			T:             p.T,
			Reliability:   p.Reliability,
			Unreliability: p.Unreliability,
			Hazard:        float64(p.Hazard),
			Density:       float64(p.Density),
		})
	}
	return models.Curve{Parameters: r.Parameters, Points: points, MTBF: r.MTBF}
}

// HasEvents reports whether the fit should be driven from failure history.
func (r *FitWeibullRequest) HasEvents() bool {
	return len(r.Events) > 0
}

// HistoryInput decodes the failure events, window and unit of a history-driven fit.
func (r *FitWeibullRequest) HistoryInput() ([]history.FailureEvent, time.Time, time.Time, utils.TimeUnit, error) {
	var zero time.Time
	if len(r.Observations) > 0 {
		return nil, zero, zero, "", utils.Validation(opDecode, "observations", len(r.Observations), "supply observations or events, not both")
	}

	start, err := utils.ParseRFC3339(r.WindowStart)
	if err != nil {
		return nil, zero, zero, "", utils.Validation(opDecode, "windowStart", r.WindowStart, err.Error())
	}
	end, err := utils.ParseRFC3339(r.WindowEnd)
	if err != nil {
		return nil, zero, zero, "", utils.Validation(opDecode, "windowEnd", r.WindowEnd, err.Error())
	}
	unit, err := utils.ParseTimeUnit(r.TimeUnit)
	if err != nil {
		return nil, zero, zero, "", utils.Validation(opDecode, "timeUnit", r.TimeUnit, err.Error())
	}

	events := make([]history.FailureEvent, 0, len(r.Events))
	for i, ev := range r.Events {
		failed, err := utils.ParseRFC3339(ev.FailedAt)
		if err != nil {
			return nil, zero, zero, "", utils.Validation(opDecode, fmt.Sprintf("events[%d].failedAt", i), ev.FailedAt, err.Error())
		}
		out := history.FailureEvent{FailureModeID: ev.FailureModeID, ComponentID: ev.ComponentID, FailedAt: failed}
		if ev.RestoredAt != "" {
			restored, err := utils.ParseRFC3339(ev.RestoredAt)
			if err != nil {
				return nil, zero, zero, "", utils.Validation(opDecode, fmt.Sprintf("events[%d].restoredAt", i), ev.RestoredAt, err.Error())
			}
			out.RestoredAt = restored
		}
		events = append(events, out)
	}
	return events, start, end, unit, nil
}

// Hierarchy is a decoded component tree ready for hierarchy.Rollup.
type Hierarchy struct {
	Tree       *hierarchy.Tree
	Root       hierarchy.NodeID
	Leaves     map[string]models.RamMetric
	Topologies map[string]models.Topology
}

// BuildHierarchy decodes the node list into a tree. Root defaults to the only root node.
func BuildHierarchy(req *ComposeHierarchyRequest) (Hierarchy, error) {
	out := Hierarchy{
		Tree:       hierarchy.NewTree(),
		Root:       hierarchy.NoParent,
		Leaves:     make(map[string]models.RamMetric),
		Topologies: make(map[string]models.Topology),
	}
	if len(req.Nodes) == 0 {
		return out, utils.Validation(opDecode, "nodes", 0, "at least one node is required")
	}

	for i, n := range req.Nodes {
		parent := hierarchy.NoParent
		if n.Parent != "" {
			id, ok := out.Tree.Lookup(n.Parent)
			if !ok {
				return out, utils.Validation(opDecode, fmt.Sprintf("nodes[%d].parent", i), n.Parent, "parent must be listed before its children")
			}
			parent = id
		}
		name := n.Name
		if name == "" {
			name = n.Key
		}
		if _, err := out.Tree.Add(n.Key, n.SystemID, name, parent); err != nil {
			return out, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		if n.Metric != nil {
			out.Leaves[n.Key] = *n.Metric
		}
		if n.Topology != nil {
			out.Topologies[n.Key] = *n.Topology
		}
	}

	if req.Root != "" {
		id, ok := out.Tree.Lookup(req.Root)
		if !ok {
			return out, utils.Validation(opDecode, "root", req.Root, "unknown node")
		}
		out.Root = id
		return out, nil
	}
	roots := out.Tree.Roots()
	if len(roots) != 1 {
		return out, utils.Validation(opDecode, "root", len(roots), "root is required when the tree has several roots")
	}
	out.Root = roots[0]
	return out, nil
}
