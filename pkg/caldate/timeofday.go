package caldate

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedTime is the sentinel wrapped by every MalformedTimeError.
var ErrMalformedTime = errors.New("malformed time of day")

// MalformedTimeError reports an input that is not an HH:MM time.
type MalformedTimeError struct {
	Input string
}

func (e *MalformedTimeError) Error() string {
	return fmt.Sprintf("malformed time of day %q: expected HH:MM (24-hour)", e.Input)
}

func (e *MalformedTimeError) Unwrap() error { return ErrMalformedTime }

// TimeOfDay is an HH:MM wall-clock time with no date or zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a 24-hour HH:MM string. A single-digit hour ("9:30")
// is accepted since older records were typed by hand.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hs, ms string
	switch {
	case len(s) == 5 && s[2] == ':':
		hs, ms = s[:2], s[3:]
	case len(s) == 4 && s[1] == ':':
		hs, ms = s[:1], s[2:]
	default:
		return TimeOfDay{}, &MalformedTimeError{Input: s}
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, &MalformedTimeError{Input: s}
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, &MalformedTimeError{Input: s}
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals; it panics on malformed input.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// String formats t as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalText encodes t as HH:MM.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText treats an empty value as midnight.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = TimeOfDay{}
		return nil
	}
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
