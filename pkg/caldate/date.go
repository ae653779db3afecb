// Package caldate provides timezone-naive calendar dates and times of day.
//
// Dates are stored as plain year/month/day components. Nothing in this package
// parses a date-only string through a timezone-aware parser, so a date never
// shifts by a day when the process runs in a zone west or east of UTC.
package caldate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedDate is the sentinel wrapped by every MalformedDateError.
var ErrMalformedDate = errors.New("malformed date")

// MalformedDateError reports an input that is not a valid calendar date.
type MalformedDateError struct {
	Input  string
	Reason string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("malformed date %q: %s", e.Input, e.Reason)
}

func (e *MalformedDateError) Unwrap() error { return ErrMalformedDate }

// Date is a calendar date with no time zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date, normalising overflow the same way time.Date does
// (NewDate(2025, 1, 32) is 2025-02-01).
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// FromTime returns the calendar date of t in t's own location.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return Date{}, &MalformedDateError{Input: s, Reason: "expected YYYY-MM-DD"}
	}
	return build(s, s[0:4], s[5:7], s[8:10])
}

// ParseLooseDate accepts either YYYY-MM-DD or DD/MM/YYYY. Each shape is
// parsed strictly.
func ParseLooseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		if len(parts) != 3 || len(parts[2]) != 4 || len(parts[0]) == 0 || len(parts[0]) > 2 ||
			len(parts[1]) == 0 || len(parts[1]) > 2 {
			return Date{}, &MalformedDateError{Input: s, Reason: "expected DD/MM/YYYY"}
		}
		return build(s, parts[2], parts[1], parts[0])
	}
	return ParseDate(s)
}

func build(input, ys, ms, ds string) (Date, error) {
	y, err := strconv.Atoi(ys)
	if err != nil || y < 1 {
		return Date{}, &MalformedDateError{Input: input, Reason: "invalid year"}
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 1 || m > 12 {
		return Date{}, &MalformedDateError{Input: input, Reason: "invalid month"}
	}
	d, err := strconv.Atoi(ds)
	if err != nil || d < 1 || d > DaysIn(y, time.Month(m)) {
		return Date{}, &MalformedDateError{Input: input, Reason: "invalid day"}
	}
	return Date{Year: y, Month: time.Month(m), Day: d}, nil
}

// MustParseDate is ParseDate for literals; it panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the unset Date.
func (d Date) IsZero() bool { return d == Date{} }

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Weekday uses the Sunday = 0 convention.
func (d Date) Weekday() int {
	return int(d.Time(time.UTC).Weekday())
}

// AddDays returns d moved n days forward (back when n is negative).
func (d Date) AddDays(n int) Date {
	return FromTime(d.Time(time.UTC).AddDate(0, 0, n))
}

// DaysUntil returns the number of days from d to other (negative when other
// is earlier). It counts on Unix seconds, so spans of any length are exact.
func (d Date) DaysUntil(other Date) int {
	return int((other.Time(time.UTC).Unix() - d.Time(time.UTC).Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// Compare returns -1, 0 or 1 as d is before, equal to or after other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

// Before and After order dates chronologically.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// MarshalText encodes the zero Date as an empty string.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText accepts YYYY-MM-DD or an empty value.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstWeekday returns the weekday (Sunday = 0) of the first day of the month.
func FirstWeekday(year int, month time.Month) int {
	return int(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday())
}
