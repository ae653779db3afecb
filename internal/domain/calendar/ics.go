package calendar

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/agenda/agenda/internal/domain/scheduling"
)

const productID = "-//agenda//calendar//ES"

// ExportICS renders appointments as an iCalendar feed. Dates and times are
// interpreted in loc; each event lasts duration. Cancelled sessions are kept
// with STATUS:CANCELLED so subscribed clients drop them.
func ExportICS(appts []*scheduling.Appointment, loc *time.Location, duration time.Duration, stamp time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, a := range appts {
		start := a.Date.Time(loc).Add(time.Duration(a.Time.Minutes()) * time.Minute)
		ev := cal.AddEvent(eventUID(a))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(duration))
		ev.SetSummary(eventSummary(a))
		if a.Notes != "" {
			ev.SetDescription(a.Notes)
		}
		if a.Status == scheduling.StatusCancelled {
			ev.SetStatus(ical.ObjectStatusCancelled)
		}
	}
	return cal.Serialize()
}

func eventUID(a *scheduling.Appointment) string {
	return a.ID + "@agenda"
}

func eventSummary(a *scheduling.Appointment) string {
	name := a.PatientName
	if name == "" {
		name = a.PatientID
	}
	if a.Insurance != "" {
		return fmt.Sprintf("Sesión: %s (%s)", name, a.Insurance)
	}
	return "Sesión: " + name
}
