package calendar

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/agenda/agenda/internal/domain/scheduling"
	"github.com/agenda/agenda/pkg/caldate"
)

func d(s string) caldate.Date        { return caldate.MustParseDate(s) }
func tod(s string) caldate.TimeOfDay { return caldate.MustParseTimeOfDay(s) }

func TestExportICS(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	appts := []*scheduling.Appointment{
		{ID: "a1", PatientName: "Ana", Date: d("2025-06-05"), Time: tod("09:15"), Insurance: "OSDE"},
		{ID: "a2", PatientName: "Beto", Date: d("2025-06-07"), Time: tod("10:00"), Status: scheduling.StatusCancelled},
	}
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	out := ExportICS(appts, loc, 45*time.Minute, stamp)
	if !strings.Contains(out, "BEGIN:VCALENDAR") {
		t.Fatalf("expected calendar, got %q", out)
	}

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	first := events[0]
	if uid := first.GetProperty(ical.ComponentPropertyUniqueId); uid == nil || uid.Value != "a1@agenda" {
		t.Errorf("unexpected uid %+v", uid)
	}
	start, err := first.GetStartAt()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	want := time.Date(2025, 6, 5, 9, 15, 0, 0, loc)
	if !start.Equal(want) {
		t.Errorf("expected start %v, got %v", want, start)
	}
	end, _ := first.GetEndAt()
	if end.Sub(start) != 45*time.Minute {
		t.Errorf("expected 45m event, got %v", end.Sub(start))
	}
	if s := first.GetProperty(ical.ComponentPropertySummary); s == nil || s.Value != "Sesión: Ana (OSDE)" {
		t.Errorf("unexpected summary %+v", s)
	}

	if st := events[1].GetProperty(ical.ComponentPropertyStatus); st == nil || st.Value != "CANCELLED" {
		t.Errorf("expected cancelled status, got %+v", st)
	}
}

func TestExportICS_Empty(t *testing.T) {
	out := ExportICS(nil, nil, time.Hour, time.Now())
	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cal.Events()) != 0 {
		t.Errorf("expected no events, got %d", len(cal.Events()))
	}
}
