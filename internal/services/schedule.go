package services

import (
	"time"

	"automation-service/internal/models"
)

// invalidScheduleRetry bounds how often a rule with a broken frequency is picked up,
// which in turn bounds its FAILURE log entries.
const invalidScheduleRetry = 24 * time.Hour

// IsRuleDue decides whether rule should run at now. Frequencies in days with a
// startTime are anchored to that wall-clock time in loc; everything else is a rolling
// interval since the last run.
func IsRuleDue(rule *models.Rule, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	freq := rule.Config.Frequency

	if err := freq.Validate(); err != nil {
		return rule.LastRunAt == nil || now.Sub(*rule.LastRunAt) >= invalidScheduleRetry
	}

	if freq.Unit == models.TimeUnitDays && freq.StartTime != "" {
		hour, minute, _ := freq.ClockTime()
		local := now.In(loc)
		startToday := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		if local.Before(startToday) {
			return false
		}
		if rule.LastRunAt == nil {
			return true
		}
		return calendarDaysBetween(rule.LastRunAt.In(loc), local) >= freq.Value
	}

	if rule.LastRunAt == nil {
		return true
	}
	return now.Sub(*rule.LastRunAt) >= freq.Interval()
}

// calendarDaysBetween counts whole calendar days from a's date to b's date.
func calendarDaysBetween(a, b time.Time) int {
	return int(CalendarDay(b).Sub(CalendarDay(a)).Hours() / 24)
}
