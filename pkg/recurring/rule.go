// Package recurring implements recurring-payment definitions: the calendar
// rule engine that steps a definition's cursor forward, the definition store,
// and the due-occurrence generator that turns definitions into ledger postings.
package recurring

import (
	"time"

	"github.com/dvoloshyn/finet/pkg/dates"
)

// Frequency is the recurrence pattern of a definition.
type Frequency string

const (
	FrequencyDaily          Frequency = "daily"
	FrequencyWeekly         Frequency = "weekly"
	FrequencyMonthly        Frequency = "monthly"
	FrequencyYearly         Frequency = "yearly"
	FrequencyCustomInterval Frequency = "custom_interval"
	FrequencyOnce           Frequency = "once"
)

// Valid reports whether the frequency is supported.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly,
		FrequencyCustomInterval, FrequencyOnce:
		return true
	}
	return false
}

// NextOccurrence computes the successor occurrence date for a definition, or
// ok=false when the definition has no successor (terminal).
//
// The anchor is the definition's own cursor; when the cursor lags behind from
// (a paused definition resumed later), from becomes the effective anchor so
// the step is always one period forward from whichever date is later. The
// caller's catch-up loop produces the intermediate occurrences, not this
// function.
func NextOccurrence(def Definition, from time.Time) (time.Time, bool) {
	if !def.Frequency.Valid() {
		return time.Time{}, false
	}
	// A one-shot has no successor.
	if def.Frequency == FrequencyOnce {
		return time.Time{}, false
	}

	var endDate time.Time
	hasEnd := false
	if def.EndDate.Valid {
		end, err := dates.Parse(def.EndDate.String)
		if err != nil {
			return time.Time{}, false
		}
		endDate = end
		hasEnd = true
	}

	if !def.NextOccurrence.Valid {
		return time.Time{}, false
	}
	anchor, err := dates.Parse(def.NextOccurrence.String)
	if err != nil {
		return time.Time{}, false
	}
	if anchor.Before(from) {
		anchor = from
	}

	endCheck := func(candidate time.Time) (time.Time, bool) {
		if hasEnd && candidate.After(endDate) {
			return time.Time{}, false
		}
		return candidate, true
	}

	interval := 1
	if def.Interval.Valid && def.Interval.Int64 > 0 {
		interval = int(def.Interval.Int64)
	}

	switch def.Frequency {
	case FrequencyDaily:
		return endCheck(anchor.AddDate(0, 0, 1))

	case FrequencyWeekly:
		return endCheck(anchor.AddDate(0, 0, 7*interval))

	case FrequencyCustomInterval:
		return endCheck(anchor.AddDate(0, 0, interval))

	case FrequencyMonthly:
		year := anchor.Year() + (int(anchor.Month())-1+interval)/12
		month := time.Month((int(anchor.Month())-1+interval)%12 + 1)
		// The target day is the pinned day_of_month, else the start date's
		// day. Using the anchor's day would make one clamped month (Jan 31 ->
		// Feb 29) stick for every month after it.
		day := anchor.Day()
		if def.DayOfMonth.Valid && def.DayOfMonth.Int64 > 0 {
			day = int(def.DayOfMonth.Int64)
		} else if start, err := dates.Parse(def.StartDate); err == nil {
			day = start.Day()
		}
		// Clamp downward when the target month is shorter (day 31 in April).
		// Six tries covers the widest possible gap (31 -> 28 plus margin).
		for i := 0; i < 6; i++ {
			if cand, ok := makeDate(year, month, day); ok {
				return endCheck(cand)
			}
			day--
		}
		return time.Time{}, false

	case FrequencyYearly:
		if cand, ok := makeDate(anchor.Year()+interval, anchor.Month(), anchor.Day()); ok {
			return endCheck(cand)
		}
		// Feb 29 anchor stepping into a non-leap year falls back to Feb 28.
		if anchor.Month() == time.February && anchor.Day() == 29 {
			return endCheck(time.Date(anchor.Year()+interval, time.February, 28, 0, 0, 0, 0, time.UTC))
		}
		return time.Time{}, false
	}

	return time.Time{}, false
}

// makeDate builds a date only if (year, month, day) names a real calendar day;
// time.Date would silently normalize April 31 into May 1.
func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}
