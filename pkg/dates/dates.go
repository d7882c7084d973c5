// Package dates provides day-granularity date helpers.
//
// The ledger stores calendar dates as ISO "YYYY-MM-DD" strings; Go code works
// on time.Time values pinned to midnight UTC so comparisons are day-exact.
package dates

import (
	"fmt"
	"time"
)

// Format is the canonical date layout used in storage and on the wire.
const Format = "2006-01-02"

// Parse parses an ISO date string into a midnight-UTC time.
func Parse(s string) (time.Time, error) {
	d, err := time.Parse(Format, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return d, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) time.Time {
	d, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// String formats a time as an ISO date string.
func String(d time.Time) string {
	return d.Format(Format)
}

// Today returns the current date at midnight UTC.
func Today() time.Time {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
