package history

import (
	"sort"
	"time"

	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

const opExtract = "extract_history"

// FailureEvent is one recorded functional failure. RestoredAt is zero when the repair end was
// not recorded.
type FailureEvent struct {
	FailureModeID string    `json:"failureModeId,omitempty"`
	ComponentID   string    `json:"componentId,omitempty"`
	FailedAt      time.Time `json:"failedAt"`
	RestoredAt    time.Time `json:"restoredAt,omitempty"`
}

// Summary is the empirical RAM snapshot of a failure history.
type Summary struct {
	Failures      int            `json:"failures"`
	OperatingTime float64        `json:"operatingTime"`
	MTBF          float64        `json:"mtbf"`
	MTTR          float64        `json:"mttr"`
	Unit          utils.TimeUnit `json:"unit"`
}

// AsMetric converts the summary into a component metric for composition.
func (s Summary) AsMetric(name string) models.RamMetric {
	m := models.RamMetric{Name: name, MTBF: s.MTBF, MTTR: s.MTTR}
	if s.MTBF > 0 && s.MTTR > 0 {
		m.Availability = s.MTBF / (s.MTBF + s.MTTR)
	}
	return m
}

func checkWindow(windowStart, windowEnd time.Time, unit utils.TimeUnit) error {
	if windowStart.IsZero() || windowEnd.IsZero() || !windowEnd.After(windowStart) {
		return utils.Validation(opExtract, "windowEnd", windowEnd, "window end must be after window start")
	}
	if _, err := utils.DurationIn(time.Hour, unit); err != nil {
		return utils.Validation(opExtract, "unit", unit, err.Error())
	}
	return nil
}

// inWindow returns the events whose failure falls inside (windowStart, windowEnd], oldest first.
// A failure at windowStart has no operating age inside the window and belongs to the one before.
func inWindow(events []FailureEvent, windowStart, windowEnd time.Time) []FailureEvent {
	out := make([]FailureEvent, 0, len(events))
	for _, ev := range events {
		if !ev.FailedAt.After(windowStart) || ev.FailedAt.After(windowEnd) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FailedAt.Before(out[j].FailedAt) })
	return out
}

// uptimeStart is when the item resumed operation after ev.
func uptimeStart(ev FailureEvent) time.Time {
	if ev.RestoredAt.After(ev.FailedAt) {
		return ev.RestoredAt
	}
	return ev.FailedAt
}

// Extract turns the failures of one failure mode into operating times between failures in the
// given unit. The item is taken as new at windowStart, or at the restoration of a failure
// recorded exactly at windowStart, which is not counted. Repair downtime is excluded. The
// running time from the last restoration to windowEnd is a right-censored suspension.
// Failures recorded at the same instant count once.
func Extract(events []FailureEvent, windowStart, windowEnd time.Time, unit utils.TimeUnit) ([]models.Observation, error) {
	if err := checkWindow(windowStart, windowEnd, unit); err != nil {
		return nil, err
	}

	var obs []models.Observation
	prev := windowStart
	for _, ev := range events {
		// an item down at windowStart starts operating once restored
		if ev.FailedAt.Equal(windowStart) && uptimeStart(ev).After(prev) {
			prev = uptimeStart(ev)
		}
	}
	for _, ev := range inWindow(events, windowStart, windowEnd) {
		d := ev.FailedAt.Sub(prev)
		if d <= 0 {
			continue
		}
		t, _ := utils.DurationIn(d, unit)
		obs = append(obs, models.Observation{Time: t})
		prev = uptimeStart(ev)
	}
	if tail := windowEnd.Sub(prev); tail > 0 {
		t, _ := utils.DurationIn(tail, unit)
		obs = append(obs, models.Observation{Time: t, Censored: true})
	}
	return obs, nil
}

// Summarize reports failure count, empirical MTBF over operating time and the mean repair
// duration of events with a recorded restoration.
func Summarize(events []FailureEvent, windowStart, windowEnd time.Time, unit utils.TimeUnit) (Summary, error) {
	obs, err := Extract(events, windowStart, windowEnd, unit)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{Unit: unit}
	for _, o := range obs {
		s.OperatingTime += o.Time
		if !o.Censored {
			s.Failures++
		}
	}
	if s.Failures > 0 {
		s.MTBF = s.OperatingTime / float64(s.Failures)
	}

	var repairs time.Duration
	repaired := 0
	for _, ev := range inWindow(events, windowStart, windowEnd) {
		if ev.RestoredAt.After(ev.FailedAt) {
			repairs += ev.RestoredAt.Sub(ev.FailedAt)
			repaired++
		}
	}
	if repaired > 0 {
		total, _ := utils.DurationIn(repairs, unit)
		s.MTTR = total / float64(repaired)
	}
	return s, nil
}
