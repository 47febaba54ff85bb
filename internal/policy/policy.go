package policy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-rcm/internal/models"
)

// Policy holds every threshold the engine applies, so the policy can be audited apart from call sites.
type Policy struct {
	Criticality CriticalityPolicy `yaml:"criticality" json:"criticality"`
	Decision    DecisionPolicy    `yaml:"decision" json:"decision"`
	Reliability ReliabilityPolicy `yaml:"reliability" json:"reliability"`
}

// CriticalityPolicy holds the inclusive lower RPN bound of each band above Low.
type CriticalityPolicy struct {
	Medium   int `yaml:"medium" json:"medium"`
	High     int `yaml:"high" json:"high"`
	Critical int `yaml:"critical" json:"critical"`
}

// TaskDefaults is the placeholder interval and assumed effectiveness for a task type.
type TaskDefaults struct {
	Interval      float64 `yaml:"interval" json:"interval"`
	Unit          string  `yaml:"unit" json:"unit"`
	Effectiveness float64 `yaml:"effectiveness" json:"effectiveness"`
}

// DecisionPolicy configures the RCM decision procedure.
type DecisionPolicy struct {
	// CostRanking lists "pm", "cm", "ff" cheapest first.
	CostRanking []string                         `yaml:"costRanking" json:"costRanking"`
	Tasks       map[models.TaskType]TaskDefaults `yaml:"tasks" json:"tasks"`
	// TargetReliability sets preventive intervals from Weibull parameters: R(interval) = target.
	TargetReliability float64 `yaml:"targetReliability" json:"targetReliability"`
	// TolerableUnavailability is U in the failure-finding interval 2*U*MTBF.
	TolerableUnavailability float64 `yaml:"tolerableUnavailability" json:"tolerableUnavailability"`
}

// ReliabilityPolicy configures curve sampling and fitted-pattern classification.
type ReliabilityPolicy struct {
	RandomLower   float64 `yaml:"randomLower" json:"randomLower"`
	RandomUpper   float64 `yaml:"randomUpper" json:"randomUpper"`
	MaxResolution int     `yaml:"maxResolution" json:"maxResolution"`
	// StandbySteps is the grid size of the numeric standby convolution.
	StandbySteps int `yaml:"standbySteps" json:"standbySteps"`
}

// Option codes used in CostRanking.
const (
	OptionPM = "pm"
	OptionCM = "cm"
	OptionFF = "ff"
)

// Default returns the four-tier policy the engine ships with.
func Default() *Policy {
	return &Policy{
		Criticality: CriticalityPolicy{Medium: 50, High: 100, Critical: 200},
		Decision: DecisionPolicy{
			CostRanking: []string{OptionPM, OptionCM, OptionFF},
			Tasks: map[models.TaskType]TaskDefaults{
				models.TaskPreventive:     {Interval: 4380, Unit: "hours", Effectiveness: 80},
				models.TaskPredictive:     {Interval: 720, Unit: "hours", Effectiveness: 85},
				models.TaskFailureFinding: {Interval: 2190, Unit: "hours", Effectiveness: 90},
				models.TaskRunToFailure:   {Interval: 0, Unit: "hours", Effectiveness: 0},
				models.TaskRedesign:       {Interval: 0, Unit: "hours", Effectiveness: 100},
			},
			TargetReliability:       0.9,
			TolerableUnavailability: 0.01,
		},
		Reliability: ReliabilityPolicy{
			RandomLower:   0.9,
			RandomUpper:   1.1,
			MaxResolution: 10000,
			StandbySteps:  512,
		},
	}
}

// Load reads a policy from YAML layered over Default. An empty path or a missing file yields
// the defaults.
func Load(path string) (*Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	return loadFile(path)
}

// loadFile parses the policy at path; unlike Load, a missing file is an error.
func loadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("policy file %s is empty", path)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Policy, error) {
	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects policies the engine cannot apply consistently.
func (p *Policy) Validate() error {
	c := p.Criticality
	if c.Medium < 1 || c.Medium >= c.High || c.High >= c.Critical || c.Critical > 1000 {
		return fmt.Errorf("criticality bands must satisfy 1 <= medium < high < critical <= 1000, got %d/%d/%d", c.Medium, c.High, c.Critical)
	}

	ranking := slices.Clone(p.Decision.CostRanking)
	slices.Sort(ranking)
	if !slices.Equal(ranking, []string{OptionCM, OptionFF, OptionPM}) {
		return fmt.Errorf("costRanking must list pm, cm and ff exactly once, got %v", p.Decision.CostRanking)
	}
	for _, task := range []models.TaskType{models.TaskPreventive, models.TaskPredictive, models.TaskFailureFinding, models.TaskRunToFailure, models.TaskRedesign} {
		d, ok := p.Decision.Tasks[task]
		if !ok {
			return fmt.Errorf("task defaults missing for %s", task)
		}
		if d.Interval < 0 || d.Effectiveness < 0 || d.Effectiveness > 100 {
			return fmt.Errorf("task defaults for %s out of range", task)
		}
	}
	if t := p.Decision.TargetReliability; t <= 0 || t >= 1 {
		return fmt.Errorf("targetReliability must be within (0,1), got %v", t)
	}
	if u := p.Decision.TolerableUnavailability; u <= 0 || u >= 1 {
		return fmt.Errorf("tolerableUnavailability must be within (0,1), got %v", u)
	}

	r := p.Reliability
	if r.RandomLower <= 0 || r.RandomLower > 1 || r.RandomUpper < 1 {
		return fmt.Errorf("random band must satisfy 0 < lower <= 1 <= upper, got %v-%v", r.RandomLower, r.RandomUpper)
	}
	if r.MaxResolution < 1 {
		return fmt.Errorf("maxResolution must be at least 1, got %d", r.MaxResolution)
	}
	if r.StandbySteps < 16 {
		return fmt.Errorf("standbySteps must be at least 16, got %d", r.StandbySteps)
	}
	return nil
}

// Source hands out the policy snapshot a single call should use.
type Source interface {
	Current() *Policy
}

// Static is a Source that never changes.
type Static struct{ P *Policy }

// Current returns the wrapped policy, or Default when unset.
func (s Static) Current() *Policy {
	if s.P == nil {
		return Default()
	}
	return s.P
}
