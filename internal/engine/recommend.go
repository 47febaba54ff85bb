package engine

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-rcm/internal/models"
)

// TaskLibrary appends site-specific task templates to decisions whose branch matches.
type TaskLibrary struct {
	rules  []TaskRule
	logger *slog.Logger
}

// TaskRule represents a single library entry.
type TaskRule struct {
	ID    string         `yaml:"id"`
	Match TaskMatch      `yaml:"match"`
	Tasks []TaskTemplate `yaml:"tasks"`
}

// TaskMatch defines optional attributes for rule matching. Empty attributes match anything.
type TaskMatch struct {
	Category     string   `yaml:"category"`
	Strategy     string   `yaml:"strategy"`
	PathContains []string `yaml:"path_contains"`
}

// TaskTemplate is the task a matching rule contributes.
type TaskTemplate struct {
	TaskType      string  `yaml:"taskType"`
	Interval      float64 `yaml:"interval"`
	Unit          string  `yaml:"unit"`
	Effectiveness float64 `yaml:"effectiveness"`
	Rationale     string  `yaml:"rationale"`
}

// TaskLibraryFile is the YAML root structure.
type TaskLibraryFile struct {
	Rules []TaskRule `yaml:"rules"`
}

// NewTaskLibrary loads rules from the provided path. If path is empty or missing, returns nil library.
func NewTaskLibrary(path string, logger *slog.Logger) (*TaskLibrary, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg TaskLibraryFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("task library loaded", slog.String("path", path), slog.Int("rules", len(cfg.Rules)))
	return &TaskLibrary{rules: cfg.Rules, logger: logger}, nil
}

// Match returns the tasks of every rule matching the decision, without duplicates.
func (l *TaskLibrary) Match(d models.Decision) []models.MaintenanceTask {
	if l == nil {
		return nil
	}

	matched := make([]models.MaintenanceTask, 0)
	for _, rule := range l.rules {
		if rule.Match.Category != "" && !strings.EqualFold(rule.Match.Category, string(d.Category)) {
			continue
		}
		if rule.Match.Strategy != "" && !strings.EqualFold(rule.Match.Strategy, string(d.Strategy)) {
			continue
		}
		if len(rule.Match.PathContains) > 0 && !pathContains(d.DecisionPath, rule.Match.PathContains) {
			continue
		}
		matched = appendUnique(matched, rule.ID, rule.Tasks...)
	}
	return matched
}

func pathContains(path string, keywords []string) bool {
	lowered := strings.ToLower(path)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func appendUnique(existing []models.MaintenanceTask, ruleID string, additions ...TaskTemplate) []models.MaintenanceTask {
	seen := make(map[string]struct{}, len(existing))
	for _, task := range existing {
		seen[string(task.TaskType)+"|"+task.Rationale] = struct{}{}
	}
	for _, tpl := range additions {
		if tpl.TaskType == "" {
			continue
		}
		rationale := tpl.Rationale
		if ruleID != "" {
			rationale = strings.TrimSpace(rationale + " (library rule " + ruleID + ")")
		}
		key := tpl.TaskType + "|" + rationale
		if _, ok := seen[key]; ok {
			continue
		}
		existing = append(existing, models.MaintenanceTask{
			TaskType:      models.TaskType(tpl.TaskType),
			Interval:      tpl.Interval,
			IntervalUnit:  tpl.Unit,
			Effectiveness: tpl.Effectiveness,
			Rationale:     rationale,
		})
		seen[key] = struct{}{}
	}
	return existing
}
