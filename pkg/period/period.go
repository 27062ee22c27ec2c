// Package period holds the calendar policy of the ledger: how a date span
// resolves to a bucket granularity and how a date rounds down to its bucket
// key. Everything here is pure so the policy is testable without a store.
package period

import (
	"errors"
	"fmt"
	"time"
)

// DateFormat is the wire format for calendar dates.
const DateFormat = "2006-01-02"

// Granularity is the bucket width used by the summary aggregation.
type Granularity string

const (
	Auto  Granularity = "auto"
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

var ErrInvalidGranularity = errors.New("granularity must be auto|day|week|month")
var ErrInvalidRange = errors.New("from must not be after to")

// ParseDate parses a strict YYYY-MM-DD calendar date at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}

// DaysBetween returns the inclusive day count between from and to;
// a same-day range counts as 1.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from)/(24*time.Hour)) + 1
}

// Resolve maps a requested granularity and a date range to a concrete bucket
// width. An explicit day/week/month always wins; auto picks by span length:
// up to 60 days -> day, up to 180 -> week, beyond -> month.
func Resolve(from, to time.Time, requested Granularity) (Granularity, error) {
	switch requested {
	case Day, Week, Month:
		return requested, nil
	case Auto:
	default:
		return "", ErrInvalidGranularity
	}
	days := DaysBetween(from, to)
	switch {
	case days <= 60:
		return Day, nil
	case days <= 180:
		return Week, nil
	default:
		return Month, nil
	}
}

// BucketKey rounds a date down to the key of its bucket: the date itself for
// Day, the Monday on or before it for Week, the first of its month for Month.
func BucketKey(g Granularity, d time.Time) time.Time {
	switch g {
	case Week:
		// Sunday=0..Saturday=6; (weekday+6)%7 is the distance back to Monday.
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case Month:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	default:
		return d
	}
}

// ValidateRange parses and orders a from/to pair.
func ValidateRange(fromStr, toStr string) (from, to time.Time, err error) {
	from, err = ParseDate(fromStr)
	if err != nil {
		return
	}
	to, err = ParseDate(toStr)
	if err != nil {
		return
	}
	if from.After(to) {
		err = ErrInvalidRange
	}
	return
}
