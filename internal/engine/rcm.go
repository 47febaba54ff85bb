package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/policy"
)

// DecisionEngine runs the RCM strategy decision procedure. Decide is pure and total: every
// flag combination reaches exactly one terminal branch.
type DecisionEngine struct {
	policy  policy.DecisionPolicy
	library *TaskLibrary
	logger  *slog.Logger
}

// NewDecisionEngine constructs a DecisionEngine. library may be nil.
func NewDecisionEngine(p policy.DecisionPolicy, library *TaskLibrary, logger *slog.Logger) *DecisionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionEngine{policy: p, library: library, logger: logger}
}

// Decide selects a maintenance strategy from the consequence flags alone.
func (e *DecisionEngine) Decide(flags models.ConsequenceFlags) models.Decision {
	return e.DecideWith(models.DecisionInput{Flags: flags})
}

// DecideWith selects a strategy and sizes task intervals from optional criticality and
// reliability inputs. The optional inputs never change which branch is taken.
func (e *DecisionEngine) DecideWith(in models.DecisionInput) models.Decision {
	flags := in.Flags
	category := flags.Category()

	var strategy models.Strategy
	var choice string
	switch category {
	case models.CategoryHidden:
		strategy, choice = e.hidden(flags)
	case models.CategorySafetyOrEnvironmental:
		strategy, choice = e.safety(flags)
	case models.CategoryOperational:
		strategy, choice = e.operational(flags)
	case models.CategoryEconomic:
		strategy, choice = e.economic(flags)
	default:
		strategy, choice = models.StrategyRunToFailure, "rtf"
	}

	decision := models.Decision{
		Flags:        flags,
		Category:     category,
		Strategy:     strategy,
		DecisionPath: pathPrefix(category) + "-" + choice,
	}
	decision.RecommendedTasks = e.tasks(in, decision)

	e.logger.Debug("rcm decision",
		slog.String("category", string(category)),
		slog.String("path", decision.DecisionPath),
		slog.String("strategy", string(strategy)),
	)
	return decision
}

func pathPrefix(c models.ConsequenceCategory) string {
	switch c {
	case models.CategoryHidden:
		return "hidden"
	case models.CategorySafetyOrEnvironmental:
		return "evident-safety"
	case models.CategoryOperational:
		return "evident-operational"
	case models.CategoryEconomic:
		return "evident-economic"
	}
	return "no-consequence"
}

func (e *DecisionEngine) hidden(f models.ConsequenceFlags) (models.Strategy, string) {
	switch {
	case f.FFFeasible:
		return models.StrategyFailureFinding, "ff"
	case f.PMFeasible:
		return models.StrategyPreventive, "pm"
	case f.CMFeasible:
		return models.StrategyPredictive, "cm"
	}
	// undetectable, untestable and unpreventable: redesign is mandatory
	return models.StrategyRedesign, "redesign"
}

// safety never returns run-to-failure, whatever RTFAcceptable says.
func (e *DecisionEngine) safety(f models.ConsequenceFlags) (models.Strategy, string) {
	switch {
	case f.PMFeasible:
		return models.StrategyPreventive, "pm"
	case f.CMFeasible:
		return models.StrategyPredictive, "cm"
	}
	return models.StrategyRedesign, "redesign"
}

func (e *DecisionEngine) operational(f models.ConsequenceFlags) (models.Strategy, string) {
	if s, code, ok := e.cheapestFeasible(f); ok {
		return s, code
	}
	if f.RTFAcceptable {
		return models.StrategyRunToFailure, "rtf"
	}
	return models.StrategyRedesign, "redesign"
}

func (e *DecisionEngine) economic(f models.ConsequenceFlags) (models.Strategy, string) {
	if f.RTFAcceptable {
		return models.StrategyRunToFailure, "rtf"
	}
	if s, code, ok := e.cheapestFeasible(f); ok {
		return s, code
	}
	return models.StrategyRedesign, "redesign"
}

// cheapestFeasible walks the configured cost ranking and returns the first feasible option.
func (e *DecisionEngine) cheapestFeasible(f models.ConsequenceFlags) (models.Strategy, string, bool) {
	ranking := e.policy.CostRanking
	if len(ranking) == 0 {
		ranking = []string{policy.OptionPM, policy.OptionCM, policy.OptionFF}
	}
	for _, code := range ranking {
		switch code {
		case policy.OptionPM:
			if f.PMFeasible {
				return models.StrategyPreventive, code, true
			}
		case policy.OptionCM:
			if f.CMFeasible {
				return models.StrategyPredictive, code, true
			}
		case policy.OptionFF:
			if f.FFFeasible {
				return models.StrategyFailureFinding, code, true
			}
		}
	}
	return "", "", false
}

func categoryReason(c models.ConsequenceCategory) string {
	switch c {
	case models.CategoryHidden:
		return "hidden failure is not evident during normal operation"
	case models.CategorySafetyOrEnvironmental:
		return "evident failure with safety or environmental consequences; run-to-failure is not acceptable"
	case models.CategoryOperational:
		return "evident failure with operational consequences; cheapest technically feasible option"
	case models.CategoryEconomic:
		return "evident failure with economic consequences only"
	}
	return "failure has no significant consequences"
}

func (e *DecisionEngine) taskDefaults(t models.TaskType) policy.TaskDefaults {
	if d, ok := e.policy.Tasks[t]; ok {
		return d
	}
	return policy.Default().Decision.Tasks[t]
}

func (e *DecisionEngine) tasks(in models.DecisionInput, d models.Decision) []models.MaintenanceTask {
	taskType := models.TaskFor(d.Strategy)
	defaults := e.taskDefaults(taskType)
	primary := models.MaintenanceTask{
		TaskType:      taskType,
		Interval:      defaults.Interval,
		IntervalUnit:  defaults.Unit,
		Effectiveness: defaults.Effectiveness,
		Rationale:     fmt.Sprintf("%s via branch %s: %s", d.Strategy, d.DecisionPath, categoryReason(d.Category)),
	}

	params := in.Reliability
	if params != nil && !(params.Beta > 0 && params.Eta > 0 && finite(params.Beta) && finite(params.Eta)) {
		params = nil
	}
	unit := defaults.Unit
	if params != nil && params.TimeUnit != "" {
		unit = params.TimeUnit
	}

	out := []models.MaintenanceTask{primary}
	switch d.Strategy {
	case models.StrategyPreventive:
		if params == nil {
			break
		}
		target := e.policy.TargetReliability
		out[0].Interval = Quantile(params.Beta, params.Eta, 1-target)
		out[0].IntervalUnit = unit
		out[0].Rationale += fmt.Sprintf("; interval keeps reliability at %.2f", target)
		if params.Beta <= 1 {
			out[0].Rationale += fmt.Sprintf("; beta %.2f shows no wear-out, so time-based replacement is unlikely to reduce failures", params.Beta)
			if in.Flags.CMFeasible {
				cm := e.taskDefaults(models.TaskPredictive)
				out = append(out, models.MaintenanceTask{
					TaskType:      models.TaskPredictive,
					Interval:      cm.Interval,
					IntervalUnit:  cm.Unit,
					Effectiveness: cm.Effectiveness,
					Rationale:     "condition monitoring complements preventive task for non wear-out failure pattern",
				})
			}
		}
	case models.StrategyFailureFinding:
		mtbf := in.MTBF
		if mtbf <= 0 && params != nil {
			mtbf = MeanLife(params.Beta, params.Eta)
		}
		if mtbf > 0 && finite(mtbf) {
			u := e.policy.TolerableUnavailability
			out[0].Interval = 2 * u * mtbf
			out[0].IntervalUnit = unit
			out[0].Rationale += fmt.Sprintf("; interval = 2 x %.3g tolerable unavailability x MTBF %.4g", u, mtbf)
		}
	}

	if c := in.Criticality; c != nil && c.Index != "" {
		for i := range out {
			out[i].Rationale += fmt.Sprintf(" [criticality %s, RPN %d]", c.Index, c.RPN)
		}
	}

	out = append(out, e.library.Match(d)...)
	for i := range out {
		out[i].Interval = roundInterval(out[i].Interval)
	}
	return out
}

func roundInterval(v float64) float64 {
	if !finite(v) || v <= 0 {
		return 0
	}
	return math.Round(v*100) / 100
}
