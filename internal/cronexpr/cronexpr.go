// Package cronexpr wraps robfig/cron's schedule parser behind the
// next_after(t) contract spec §4.3 assumes, supporting both 5-field and
// 6-field (with seconds) cron expressions and an IANA timezone.
package cronexpr

import (
	"fmt"
	"time"

	"github.com/robfig/cron"
)

var (
	standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	secondsParser  = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Schedule is a parsed, timezone-bound cron expression.
type Schedule struct {
	expr     string
	location *time.Location
	sched    cron.Schedule
}

// Parse validates a 5- or 6-field cron expression and binds it to tz
// (empty tz means UTC). Invalid expressions are rejected up front so
// tasks are never persisted with an unparseable schedule (spec §3's
// "cron_schedule is a valid 5/6-field cron" invariant).
func Parse(expr string, tz string) (Schedule, error) {
	loc := time.UTC
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid schedule timezone %q: %w", tz, err)
		}
		loc = l
	}

	sched, err := standardParser.Parse(expr)
	if err != nil {
		sched, err = secondsParser.Parse(expr)
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
	}

	return Schedule{expr: expr, location: loc, sched: sched}, nil
}

// NextAfter returns the first scheduled instant strictly after t, in
// the schedule's own timezone, per spec §4.3's cron.next_after(t).
func (s Schedule) NextAfter(t time.Time) time.Time {
	return s.sched.Next(t.In(s.location))
}

// String returns the original expression as stored on the task.
func (s Schedule) String() string {
	return s.expr
}
