package cronexpr

import (
	"testing"
	"time"
)

func TestParse_RejectsInvalidExpression(t *testing.T) {
	if _, err := Parse("not a cron expr", ""); err == nil {
		t.Fatalf("expected an error for an invalid expression")
	}
}

func TestParse_RejectsUnknownTimezone(t *testing.T) {
	if _, err := Parse("* * * * *", "Not/A_Zone"); err == nil {
		t.Fatalf("expected an error for an unknown timezone")
	}
}

func TestNextAfter_FiveFieldExpression(t *testing.T) {
	sched, err := Parse("0 * * * *", "")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	from := time.Date(2026, 7, 30, 12, 15, 0, 0, time.UTC)
	got := sched.NextAfter(from)
	want := time.Date(2026, 7, 30, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextAfter_SixFieldExpressionWithSeconds(t *testing.T) {
	sched, err := Parse("*/30 * * * * *", "")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	from := time.Date(2026, 7, 30, 12, 0, 10, 0, time.UTC)
	got := sched.NextAfter(from)
	want := time.Date(2026, 7, 30, 12, 0, 30, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextAfter_RespectsTimezone(t *testing.T) {
	sched, err := Parse("0 9 * * *", "America/New_York")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	from := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	got := sched.NextAfter(from)
	if got.Hour() != 9 {
		t.Fatalf("got hour %d in schedule's own location, want 9", got.Hour())
	}
}

func TestString_ReturnsOriginalExpression(t *testing.T) {
	sched, err := Parse("*/5 * * * *", "")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if sched.String() != "*/5 * * * *" {
		t.Fatalf("got %q, want original expression preserved", sched.String())
	}
}
