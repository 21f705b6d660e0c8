/*
period.go - Billing period boundaries

PURPOSE:
  Spend and bonus usage are always aggregated over a billing window:

  calendar_month:   first of the month to first of the next month
  statement_month:  anchored on the card's statement day, rolling back to
                    the prior month when the as-of day precedes it
  rolling_30_days:  the 30 days up to the as-of instant

  Statement days beyond a month's length (31 in February) clamp to the
  month's last day, so every month has exactly one statement start.
*/
package usage

import (
	"time"

	"github.com/cardfolio/reward-engine/engine"
)

// Period is a half-open billing window [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// PeriodFor computes the billing window of the given type containing asOf.
// statementDay is only consulted for statement_month; values < 1 fall back
// to calendar-month behavior.
func PeriodFor(periodType engine.PeriodType, asOf time.Time, statementDay int) Period {
	asOf = asOf.UTC()
	switch periodType {
	case engine.PeriodStatementMonth:
		if statementDay < 1 {
			return calendarMonth(asOf)
		}
		return statementMonth(asOf, statementDay)
	case engine.PeriodRolling30Days:
		return Period{Start: asOf.AddDate(0, 0, -30), End: asOf}
	default: // calendar_month
		return calendarMonth(asOf)
	}
}

func calendarMonth(asOf time.Time) Period {
	start := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

func statementMonth(asOf time.Time, statementDay int) Period {
	year, month := asOf.Year(), asOf.Month()
	if asOf.Day() < clampDay(year, month, statementDay) {
		// Before this month's statement start: the window opened last month.
		month--
		if month < time.January {
			month = time.December
			year--
		}
	}
	start := time.Date(year, month, clampDay(year, month, statementDay), 0, 0, 0, 0, time.UTC)

	nextYear, nextMonth := year, month+1
	if nextMonth > time.December {
		nextMonth = time.January
		nextYear++
	}
	end := time.Date(nextYear, nextMonth, clampDay(nextYear, nextMonth, statementDay), 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: end}
}

// clampDay clamps day to the number of days in year/month.
func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

// CalendarMonth returns the window for an explicit year+month, used for
// bonus-points-used aggregation.
func CalendarMonth(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}
