package models

// ConsequenceFlags are the raw consequence and feasibility answers for one failure mode.
type ConsequenceFlags struct {
	HiddenFunction           bool `json:"hiddenFunction" yaml:"hiddenFunction"`
	SafetyConsequence        bool `json:"safetyConsequence" yaml:"safetyConsequence"`
	EnvironmentalConsequence bool `json:"environmentalConsequence" yaml:"environmentalConsequence"`
	OperationalConsequence   bool `json:"operationalConsequence" yaml:"operationalConsequence"`
	EconomicConsequence      bool `json:"economicConsequence" yaml:"economicConsequence"`
	FailureEvident           bool `json:"failureEvident" yaml:"failureEvident"`
	PMFeasible               bool `json:"pmFeasible" yaml:"pmFeasible"`
	CMFeasible               bool `json:"cmFeasible" yaml:"cmFeasible"`
	FFFeasible               bool `json:"ffFeasible" yaml:"ffFeasible"`
	RTFAcceptable            bool `json:"rtfAcceptable" yaml:"rtfAcceptable"`
}

// ConsequenceCategory is the single variant the decision tree dispatches on.
type ConsequenceCategory string

const (
	CategoryHidden                ConsequenceCategory = "hidden"
	CategorySafetyOrEnvironmental ConsequenceCategory = "safety-or-environmental"
	CategoryOperational           ConsequenceCategory = "operational"
	CategoryEconomic              ConsequenceCategory = "economic"
	CategoryNone                  ConsequenceCategory = "none"
)

// Category classifies the flags in RCM precedence order: hidden, safety/environmental,
// operational, economic, none.
func (f ConsequenceFlags) Category() ConsequenceCategory {
	switch {
	case f.HiddenFunction && !f.FailureEvident:
		return CategoryHidden
	case f.SafetyConsequence || f.EnvironmentalConsequence:
		return CategorySafetyOrEnvironmental
	case f.OperationalConsequence:
		return CategoryOperational
	case f.EconomicConsequence:
		return CategoryEconomic
	}
	return CategoryNone
}

// Strategy is the maintenance strategy selected for a failure mode.
type Strategy string

const (
	StrategyPreventive     Strategy = "Preventive Maintenance"
	StrategyPredictive     Strategy = "Predictive Maintenance"
	StrategyFailureFinding Strategy = "Failure-Finding"
	StrategyRunToFailure   Strategy = "Run-to-Failure"
	StrategyRedesign       Strategy = "Redesign"
)

// TaskType is the kind of maintenance action a task prescribes.
type TaskType string

const (
	TaskPredictive     TaskType = "Predictive"
	TaskPreventive     TaskType = "Preventive"
	TaskFailureFinding TaskType = "Failure-Finding"
	TaskRunToFailure   TaskType = "Run-to-Failure"
	TaskRedesign       TaskType = "Redesign"
)

// TaskFor maps a strategy onto the task type that implements it.
func TaskFor(s Strategy) TaskType {
	switch s {
	case StrategyPreventive:
		return TaskPreventive
	case StrategyPredictive:
		return TaskPredictive
	case StrategyFailureFinding:
		return TaskFailureFinding
	case StrategyRunToFailure:
		return TaskRunToFailure
	}
	return TaskRedesign
}

// MaintenanceTask is a recommended or recorded maintenance action.
type MaintenanceTask struct {
	TaskType      TaskType `json:"taskType"`
	Interval      float64  `json:"interval"`
	IntervalUnit  string   `json:"intervalUnit"`
	Effectiveness float64  `json:"effectiveness"`
	Rationale     string   `json:"rationale"`
}

// Decision is the outcome of the RCM decision procedure.
type Decision struct {
	Flags            ConsequenceFlags    `json:"flags"`
	Category         ConsequenceCategory `json:"category"`
	Strategy         Strategy            `json:"strategy"`
	DecisionPath     string              `json:"decisionPath"`
	RecommendedTasks []MaintenanceTask   `json:"recommendedTasks"`
}

// DecisionInput carries the flags plus optional scorer and reliability outputs.
type DecisionInput struct {
	Flags       ConsequenceFlags
	Criticality *Criticality
	Reliability *WeibullParameters
	// MTBF of the protective device, used for failure-finding intervals. Zero when unknown.
	MTBF float64
}
