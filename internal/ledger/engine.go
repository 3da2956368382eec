package ledger

import (
	"strconv"
	"strings"
	"time"
)

// DayLayout is the wire format of every calendar day handled by the ledger.
const DayLayout = "2006-01-02"

// MonthLayout is the wire format of month keys.
const MonthLayout = "2006-01"

// Engine runs the pipeline under a fixed policy and a fixed "today". It holds
// no mutable state and may be shared across goroutines.
type Engine struct {
	policy Policy
	today  time.Time
}

// NewEngine captures today as the calendar day of now in now's location.
// Policy zero values fall back to DefaultPolicy.
func NewEngine(policy Policy, now time.Time) Engine {
	return Engine{
		policy: policy.withDefaults(),
		today:  civil(now),
	}
}

// Policy returns the effective rule set.
func (e Engine) Policy() Policy {
	return e.policy
}

// Today returns the evaluation day as a UTC-midnight civil date.
func (e Engine) Today() time.Time {
	return e.today
}

// WeekBounds returns the first and last day of the week containing day.
func (e Engine) WeekBounds(day time.Time) (time.Time, time.Time) {
	offset := (int(day.Weekday()) - int(*e.policy.WeekStart) + 7) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// CurrentWeekEnd returns the last day of the week containing today.
func (e Engine) CurrentWeekEnd() time.Time {
	_, end := e.WeekBounds(e.today)
	return end
}

// day parses a ledger date, falling back to today when the value is empty or
// malformed. ok is false when the fallback was used.
func (e Engine) day(value string) (time.Time, bool) {
	if t, ok := parseDay(value); ok {
		return t, true
	}
	return e.today, false
}

// civil drops the clock and zone of t, keeping its calendar day.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseDay reads "YYYY-MM-DD", tolerating a trailing "T..." time component.
func parseDay(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if idx := strings.IndexByte(value, 'T'); idx >= 0 {
		value = value[:idx]
	}
	parts := strings.Split(value, "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	y, errY := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	d, errD := strconv.Atoi(parts[2])
	if errY != nil || errM != nil || errD != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
}

// daysBetween counts whole calendar days from a to b, both UTC midnights.
// time.Duration overflows past ~292 years, so the difference uses Unix seconds.
func daysBetween(a, b time.Time) int {
	return int((b.Unix() - a.Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

func formatDay(t time.Time) string {
	return t.Format(DayLayout)
}

func formatMonth(t time.Time) string {
	return t.Format(MonthLayout)
}
