package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/miradorstack/mirador-rcm/internal/api"
	"github.com/miradorstack/mirador-rcm/internal/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	indexColors = map[models.CriticalityIndex]lipgloss.Color{
		models.CriticalityLow:      lipgloss.Color("42"),
		models.CriticalityMedium:   lipgloss.Color("220"),
		models.CriticalityHigh:     lipgloss.Color("208"),
		models.CriticalityCritical: lipgloss.Color("196"),
	}
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func indexLabel(c models.CriticalityIndex) string {
	color, ok := indexColors[c]
	if !ok {
		return string(c)
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(string(c))
}

func renderCriticality(c models.Criticality, created bool) string {
	t := newTable("Failure mode", "S", "O", "D", "RPN", "Criticality").
		Row(c.FailureModeID, strconv.Itoa(c.Severity), strconv.Itoa(c.Occurrence), strconv.Itoa(c.Detection),
			strconv.Itoa(c.RPN), indexLabel(c.Index))
	out := t.String()
	if c.ID != "" {
		verb := "updated"
		if created {
			verb = "created"
		}
		out += "\n" + mutedStyle.Render(fmt.Sprintf("record %s %s", c.ID, verb))
	}
	return out
}

func renderDecision(d models.Decision) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(string(d.Strategy)))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("category %s, path %s", d.Category, d.DecisionPath)))
	b.WriteString("\n")

	t := newTable("Task", "Interval", "Effectiveness", "Rationale")
	for _, task := range d.RecommendedTasks {
		interval := "-"
		if task.Interval > 0 {
			interval = num(task.Interval) + " " + task.IntervalUnit
		}
		t.Row(string(task.TaskType), interval, num(task.Effectiveness)+"%", task.Rationale)
	}
	b.WriteString(t.String())
	return b.String()
}

func renderCurve(c models.Curve) string {
	t := newTable("t", "R(t)", "F(t)", "h(t)", "f(t)")
	for _, p := range c.Points {
		t.Row(num(p.T), num(p.Reliability), num(p.Unreliability), num(p.Hazard), num(p.Density))
	}
	unit := c.Parameters.TimeUnit
	if unit == "" {
		unit = "hours"
	}
	header := fmt.Sprintf("beta %s, eta %s %s, MTBF %s %s",
		num(c.Parameters.Beta), num(c.Parameters.Eta), unit, num(c.MTBF), unit)
	return titleStyle.Render(header) + "\n" + t.String()
}

func renderFit(r api.FitWeibullResponse) string {
	f := r.Fit
	t := newTable("Parameter", "Value").
		Row("beta", num(f.Beta)).
		Row("eta", num(f.Eta)).
		Row("R²", num(f.R2)).
		Row("B10", num(f.B10)).
		Row("B50", num(f.B50)).
		Row("MTBF", num(f.MTBF)).
		Row("pattern", string(f.Pattern)).
		Row("failures", strconv.Itoa(f.Failures)).
		Row("suspensions", strconv.Itoa(f.Suspensions))
	out := t.String()
	if s := r.Summary; s != nil {
		out += "\n" + mutedStyle.Render(fmt.Sprintf("history of %s: %d failures over %s %s, empirical MTBF %s, MTTR %s",
			r.FailureModeID, s.Failures, num(s.OperatingTime), s.Unit, num(s.MTBF), num(s.MTTR)))
	}
	return out
}

func systemRow(name string, r models.SystemRamResult) []string {
	rel := "-"
	if r.HasReliability {
		rel = num(r.Reliability)
	}
	kind := string(r.Topology.Kind)
	if r.Topology.Required > 0 && r.Topology.Kind != models.TopologySeries {
		kind = fmt.Sprintf("%s (%d of %d)", kind, r.Topology.Required, len(r.Components))
	}
	return []string{name, kind, rel, num(r.Availability), num(r.MTBF), num(r.MTTR)}
}

func renderSystem(r models.SystemRamResult) string {
	units := newTable("Component", "λ", "MTBF", "MTTR", "A", "R")
	for i, c := range r.Components {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}
		units.Row(name, num(c.FailureRate), num(c.MTBF), num(c.MTTR), num(c.Availability), num(c.Reliability))
	}
	system := newTable("System", "Topology", "R", "A", "MTBF", "MTTR").Row(systemRow("system", r)...)
	return units.String() + "\n" + system.String()
}

func renderHierarchy(req api.ComposeHierarchyRequest, resp api.ComposeHierarchyResponse) string {
	// request order lists parents before children, so reversing it walks bottom-up
	order := make([]string, 0, len(resp.Results))
	for i := len(req.Nodes) - 1; i >= 0; i-- {
		if _, ok := resp.Results[req.Nodes[i].Key]; ok {
			order = append(order, req.Nodes[i].Key)
		}
	}
	if len(order) != len(resp.Results) {
		order = order[:0]
		for key := range resp.Results {
			order = append(order, key)
		}
		sort.Strings(order)
	}

	t := newTable("Node", "Topology", "R", "A", "MTBF", "MTTR")
	for _, key := range order {
		name := key
		if key == resp.Root {
			name = titleStyle.Render(key)
		}
		t.Row(systemRow(name, resp.Results[key])...)
	}
	return t.String()
}
