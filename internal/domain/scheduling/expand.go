package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/agenda/agenda/pkg/caldate"
)

var (
	ErrInvalidWeekday = errors.New("weekday must be between 0 (Sunday) and 6 (Saturday)")
	ErrMissingRange   = errors.New("startDate and endDate are required")
)

type weekdaySet [7]bool

func newWeekdaySet(days []int) (weekdaySet, int, error) {
	var set weekdaySet
	n := 0
	for _, d := range days {
		if d < 0 || d > 6 {
			return set, 0, fmt.Errorf("%w: %d", ErrInvalidWeekday, d)
		}
		if !set[d] {
			set[d] = true
			n++
		}
	}
	return set, n, nil
}

// checkRange validates the request and reports whether it produces anything.
func checkRange(req RecurrenceRequest) (weekdaySet, int, bool, error) {
	set, n, err := newWeekdaySet(req.WeekDays)
	if err != nil {
		return set, 0, false, err
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return set, 0, false, ErrMissingRange
	}
	if n == 0 || req.EndDate.Before(req.StartDate) {
		return set, n, false, nil
	}
	return set, n, true, nil
}

// Expand returns one instance per day in [StartDate, EndDate] whose weekday is
// in WeekDays, in ascending date order. An empty weekday set or an inverted
// range yields no instances and no error.
func Expand(req RecurrenceRequest) ([]*Appointment, error) {
	set, _, ok, err := checkRange(req)
	if err != nil || !ok {
		return nil, err
	}
	var out []*Appointment
	for d := req.StartDate; !d.After(req.EndDate); d = d.AddDays(1) {
		if set[d.Weekday()] {
			out = append(out, req.instance(d))
		}
	}
	return out, nil
}

// Preview counts the instances Expand would produce without building them:
// whole weeks contribute one instance per selected weekday, then the trailing
// partial week is checked day by day.
func Preview(req RecurrenceRequest) (SeriesPreview, error) {
	p := SeriesPreview{StartDate: req.StartDate, EndDate: req.EndDate}
	set, n, ok, err := checkRange(req)
	if err != nil || !ok {
		return p, err
	}

	days := req.StartDate.DaysUntil(req.EndDate) + 1
	count := (days / 7) * n
	first := req.StartDate.Weekday()
	for i := 0; i < days%7; i++ {
		if set[(first+i)%7] {
			count++
		}
	}
	p.Count = count
	p.Total = float64(count) * req.Amount

	rule, err := SeriesRule(req)
	if err != nil {
		return p, err
	}
	p.Rule = rule
	return p, nil
}

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

func seriesRRule(req RecurrenceRequest) (*rrule.RRule, error) {
	set, _, ok, err := checkRange(req)
	if err != nil || !ok {
		return nil, err
	}
	var byDay []rrule.Weekday
	for d, on := range set {
		if on {
			byDay = append(byDay, rruleWeekdays[d])
		}
	}
	return rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: byDay,
		Dtstart:   req.StartDate.Time(time.UTC),
		Until:     req.EndDate.Time(time.UTC),
	})
}

// SeriesRule renders the request as an RFC 5545 RRULE value
// (FREQ=WEEKLY;UNTIL=...;BYDAY=...). Empty requests have no rule.
func SeriesRule(req RecurrenceRequest) (string, error) {
	r, err := seriesRRule(req)
	if err != nil || r == nil {
		return "", err
	}
	s := r.String()
	if _, after, found := strings.Cut(s, "RRULE:"); found {
		return after, nil
	}
	return s, nil
}

// RuleDates lists the occurrence dates according to the RRULE engine.
func RuleDates(req RecurrenceRequest) ([]caldate.Date, error) {
	r, err := seriesRRule(req)
	if err != nil || r == nil {
		return nil, err
	}
	var out []caldate.Date
	for _, t := range r.All() {
		out = append(out, caldate.FromTime(t.UTC()))
	}
	return out, nil
}
