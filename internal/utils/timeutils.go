package utils

import (
	"fmt"
	"strings"
	"time"
)

// TimeUnit labels the unit reliability parameters and horizons are expressed in.
type TimeUnit string

const (
	UnitHours  TimeUnit = "hours"
	UnitDays   TimeUnit = "days"
	UnitWeeks  TimeUnit = "weeks"
	UnitMonths TimeUnit = "months"
	UnitYears  TimeUnit = "years"
	// UnitCycles is a usage count; it has no wall-clock length.
	UnitCycles TimeUnit = "cycles"
)

var unitLengths = map[TimeUnit]time.Duration{
	UnitHours:  time.Hour,
	UnitDays:   24 * time.Hour,
	UnitWeeks:  7 * 24 * time.Hour,
	UnitMonths: 730 * time.Hour,
	UnitYears:  8760 * time.Hour,
}

// ParseTimeUnit normalises a unit label. An empty value defaults to hours.
func ParseTimeUnit(value string) (TimeUnit, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "":
		return UnitHours, nil
	case "h", "hr", "hour", "hours":
		return UnitHours, nil
	case "d", "day", "days":
		return UnitDays, nil
	case "w", "week", "weeks":
		return UnitWeeks, nil
	case "month", "months":
		return UnitMonths, nil
	case "y", "year", "years":
		return UnitYears, nil
	case "cycle", "cycles":
		return UnitCycles, nil
	}
	return "", fmt.Errorf("unknown time unit %q", value)
}

// DurationIn converts a wall-clock duration into the given unit.
func DurationIn(d time.Duration, unit TimeUnit) (float64, error) {
	length, ok := unitLengths[unit]
	if !ok {
		return 0, fmt.Errorf("time unit %q has no wall-clock length", unit)
	}
	return float64(d) / float64(length), nil
}

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}
