package utils

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeUnit(t *testing.T) {
	cases := map[string]TimeUnit{"": UnitHours, "Hours": UnitHours, "d": UnitDays, "cycles": UnitCycles, "years": UnitYears}
	for in, want := range cases {
		got, err := ParseTimeUnit(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", in, want, got)
		}
	}
	if _, err := ParseTimeUnit("fortnights"); err == nil {
		t.Fatalf("expected error for unknown unit")
	}
}

func TestDurationIn(t *testing.T) {
	got, err := DurationIn(36*time.Hour, UnitDays)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1.5 {
		t.Fatalf("expected 1.5 days, got %v", got)
	}
	if _, err := DurationIn(time.Hour, UnitCycles); err == nil {
		t.Fatalf("expected error converting to cycles")
	}
}

func TestAppErrorKinds(t *testing.T) {
	err := Validation("score", "severity", 0, "rating must be within [1,10]")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation kind, got %v", err)
	}
	if KindOf(err) != ErrValidation {
		t.Fatalf("unexpected kind: %v", KindOf(err))
	}
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Field != "severity" {
		t.Fatalf("expected AppError with field, got %#v", err)
	}

	cause := errors.New("boom")
	wrapped := &AppError{Op: "store", Kind: ErrInvariantViolation, Msg: "duplicate", Err: cause}
	if !errors.Is(wrapped, cause) || !errors.Is(wrapped, ErrInvariantViolation) {
		t.Fatalf("expected both kind and cause to match")
	}
	if KindOf(NewAppError("op", "msg", cause)) != nil {
		t.Fatalf("expected no kind for plain app error")
	}
}
