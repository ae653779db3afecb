package caldate

import (
	"fmt"
	"time"
)

// Month identifies one displayed calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month d falls in.
func MonthOf(d Date) Month { return Month{Year: d.Year, Month: d.Month} }

// ParseMonth parses YYYY-MM.
func ParseMonth(s string) (Month, error) {
	if len(s) != 7 || s[4] != '-' {
		return Month{}, &MalformedDateError{Input: s, Reason: "expected YYYY-MM"}
	}
	d, err := build(s, s[0:4], s[5:7], "01")
	if err != nil {
		return Month{}, err
	}
	return MonthOf(d), nil
}

// String formats m as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// First is the first day of m.
func (m Month) First() Date { return Date{Year: m.Year, Month: m.Month, Day: 1} }

// Last is the last day of m.
func (m Month) Last() Date { return Date{Year: m.Year, Month: m.Month, Day: m.Days()} }

// Days returns how many days m has.
func (m Month) Days() int { return DaysIn(m.Year, m.Month) }

// Contains reports whether d falls in m.
func (m Month) Contains(d Date) bool {
	return d.Year == m.Year && d.Month == m.Month
}

// Prev is the month before m.
func (m Month) Prev() Month { return m.Add(-1) }

// Next is the month after m.
func (m Month) Next() Month { return m.Add(1) }

// Add moves n months forward (or back when n is negative).
func (m Month) Add(n int) Month {
	return MonthOf(FromTime(time.Date(m.Year, m.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)))
}

// MarshalText encodes m as YYYY-MM.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses YYYY-MM.
func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
