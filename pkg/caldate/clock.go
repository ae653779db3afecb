package caldate

import "time"

// Clock supplies the current instant. Inject FixedClock in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (time.Local when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location != nil {
		return time.Now().In(c.Location)
	}
	return time.Now()
}

// FixedClock always reports T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Today returns the clock's current calendar date.
func Today(c Clock) Date {
	return FromTime(c.Now())
}
