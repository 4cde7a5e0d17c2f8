// Package recurrence provides calendar arithmetic for recurring billing
// occurrences.
//
// All values are timezone-naive calendar dates, represented as time.Time at
// midnight UTC. Month and year rollover follow time.Time.AddDate semantics:
// a day-of-month the target month does not have normalizes forward (Jan 31
// plus one month is Mar 2 or Mar 3 depending on leap year). This is the
// documented clamp behavior and is covered by tests.
package recurrence

import (
	"errors"
	"time"

	"github.com/subtrack-app/subtrack/internal/domain"
)

// ErrInvalidDate is returned for unparseable date strings. Callers must treat
// an invalid date as "never due".
var ErrInvalidDate = errors.New("invalid calendar date")

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Midnight truncates t to its calendar date, discarding the time-of-day and
// pinning the result to UTC so comparisons never cross a timezone boundary.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Advance moves a calendar date forward by one billing cycle.
func Advance(d time.Time, f domain.Frequency) time.Time {
	return Midnight(d).AddDate(0, f.Months(), 0)
}

// Occurrences enumerates billing occurrences from start (applying f
// repeatedly) that fall within [from, to], inclusive.
func Occurrences(start time.Time, f domain.Frequency, from, to time.Time) []time.Time {
	from, to = Midnight(from), Midnight(to)
	var out []time.Time
	for d := Midnight(start); !d.After(to); d = Advance(d, f) {
		if !d.Before(from) {
			out = append(out, d)
		}
	}
	return out
}

// DaysUntil returns the signed number of calendar days between now and
// target, both reduced to their local midnights. Rounding is toward positive
// infinity: a target 2.3 days away reports 3.
func DaysUntil(now, target time.Time) int {
	diff := Midnight(target).Sub(Midnight(now))
	days := diff / (24 * time.Hour)
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return int(days)
}
