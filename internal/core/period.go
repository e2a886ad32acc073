package core

import (
	"strings"
	"time"
)

// Period is the aggregation window selected by a caller, anchored to "now".
type Period string

const (
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
)

// ParsePeriod maps user input to a Period. Unknown values fall back to monthly.
func ParsePeriod(s string) Period {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case PeriodWeekly:
		return PeriodWeekly
	case PeriodQuarterly:
		return PeriodQuarterly
	case PeriodYearly:
		return PeriodYearly
	default:
		return PeriodMonthly
	}
}

func (p Period) String() string {
	return string(p)
}

// Start returns the beginning of the current week (Monday), month, quarter or
// year containing now. Unrecognized periods use the start of the month.
func (p Period) Start(now time.Time) time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	switch p {
	case PeriodWeekly:
		offset := (int(now.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case PeriodQuarterly:
		first := time.Month(((int(m)-1)/3)*3 + 1)
		return time.Date(y, first, 1, 0, 0, 0, 0, loc)
	case PeriodYearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return MonthStart(now)
	}
}

// MonthStart truncates t to midnight of the first day of its month.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the (fractional) number of days from a to b.
func DaysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}
