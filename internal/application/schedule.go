package application

import (
	"time"

	"github.com/danakj/fizz/internal/domain/model"
)

// weeklyReportSpacingDays is the minimum number of local calendar days
// between two weekly summaries for one member.
const weeklyReportSpacingDays = 7

// ReportInstants returns the UTC instants at which the member's configured
// report times occur on their local "today", derived from now. The result is
// empty when today is not a workday or the member is away (the away date is
// inclusive). Local times erased or repeated by a clock transition are
// skipped rather than estimated.
func ReportInstants(m *model.MemberConfig, now time.Time) []time.Time {
	loc := m.Location()
	local := now.In(loc)
	today := model.DateOf(local)

	if !m.WorksOn(local.Weekday()) {
		return nil
	}
	if m.AwayUntil != nil && today.Compare(*m.AwayUntil) <= 0 {
		return nil
	}

	var out []time.Time
	for _, tod := range m.ReportTimes {
		if t, ok := resolveLocal(today, tod, loc); ok {
			out = append(out, t.UTC())
		}
	}
	return out
}

// MemberDue reports whether any of the member's report times fell in the
// half-open interval (lastRun, now]. Pure: calling it twice for the same
// inputs yields the same answer, which is what makes a retried cycle safe.
func MemberDue(m *model.MemberConfig, lastRun, now time.Time) bool {
	for _, t := range ReportInstants(m, now) {
		if t.After(lastRun) && !t.After(now) {
			return true
		}
	}
	return false
}

// WeeklyReportDue reports whether the member should receive the non-blocking
// issue summary: true when they never have, or when their local calendar date
// is at least seven days past the local date of the previous summary. Dates
// are compared, not durations, so DST cannot shift the boundary.
func WeeklyReportDue(m *model.MemberConfig, now time.Time) bool {
	if m.LastWeeklyReport == nil {
		return true
	}
	loc := m.Location()
	today := model.DateOf(now.In(loc))
	last := model.DateOf(m.LastWeeklyReport.In(loc))
	return today.DaysSince(last) >= weeklyReportSpacingDays
}

// resolveLocal maps a local date and wall-clock time to an instant in loc.
// The second result is false when the wall time does not exist (skipped by a
// forward transition) or occurs twice (repeated by a backward transition).
func resolveLocal(d model.Date, tod model.TimeOfDay, loc *time.Location) (time.Time, bool) {
	t := time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, loc)
	if !wallEquals(t, d, tod) {
		// time.Date normalized the wall clock: the local time never happened.
		return time.Time{}, false
	}
	// If the same wall clock also occurs an hour away, the transition made it
	// ambiguous. Covers the one-hour shifts used by every current zone.
	if wallEquals(t.Add(-time.Hour), d, tod) || wallEquals(t.Add(time.Hour), d, tod) {
		return time.Time{}, false
	}
	return t, true
}

func wallEquals(t time.Time, d model.Date, tod model.TimeOfDay) bool {
	return model.DateOf(t) == d && t.Hour() == tod.Hour && t.Minute() == tod.Minute
}
