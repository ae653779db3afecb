// Package calendar groups a month's appointments, birthdays and urgent tasks
// by day-of-month for the calendar page.
package calendar

import (
	"sort"

	"github.com/agenda/agenda/internal/domain/patients"
	"github.com/agenda/agenda/internal/domain/scheduling"
	"github.com/agenda/agenda/internal/domain/tasks"
	"github.com/agenda/agenda/pkg/caldate"
)

// DayBuckets maps day-of-month to that day's items. It is only meaningful
// for the month it was built for; a missing day means no items.
type DayBuckets[T any] map[int][]T

// BucketByDay keeps the items dated inside m and groups them by day, in
// input order. The input slice is not modified.
func BucketByDay[T any](items []T, m caldate.Month, dateOf func(T) caldate.Date) DayBuckets[T] {
	out := make(DayBuckets[T])
	for _, it := range items {
		d := dateOf(it)
		if !m.Contains(d) {
			continue
		}
		out[d.Day] = append(out[d.Day], it)
	}
	return out
}

// AppointmentsByDay buckets appointments and orders each day by time.
func AppointmentsByDay(appts []*scheduling.Appointment, m caldate.Month) DayBuckets[*scheduling.Appointment] {
	out := BucketByDay(appts, m, func(a *scheduling.Appointment) caldate.Date { return a.Date })
	for _, day := range out {
		sort.SliceStable(day, func(i, j int) bool {
			return day[i].Time.Minutes() < day[j].Time.Minutes()
		})
	}
	return out
}

// Birthday is a patient's birthday as shown in the displayed month. Age is
// displayed year minus birth year, which is the age turned on that day.
type Birthday struct {
	PatientID string       `json:"patientId"`
	Name      string       `json:"name"`
	Phone     string       `json:"phone,omitempty"`
	BirthDate caldate.Date `json:"birthDate"`
	Age       int          `json:"age"`
	WhatsApp  string       `json:"whatsapp,omitempty"`
}

// BirthdaysByDay buckets patients born in m's month (any year) by the day of
// their birth date.
func BirthdaysByDay(ps []*patients.Patient, m caldate.Month) DayBuckets[Birthday] {
	out := make(DayBuckets[Birthday])
	for _, p := range ps {
		// A Feb 29 birthday has no cell in a common year's February.
		if !p.HasBirthDate() || p.BirthDate.Month != m.Month || p.BirthDate.Day > m.Days() {
			continue
		}
		out[p.BirthDate.Day] = append(out[p.BirthDate.Day], birthdayOf(p, m.Year))
	}
	return out
}

func birthdayOf(p *patients.Patient, year int) Birthday {
	return Birthday{
		PatientID: p.ID,
		Name:      p.Name,
		Phone:     p.Phone,
		BirthDate: p.BirthDate,
		Age:       year - p.BirthDate.Year,
		WhatsApp:  WhatsAppLink(p.Phone, BirthdayMessage(p.Name)),
	}
}

// TasksByDay buckets urgent open tasks by due date.
func TasksByDay(ts []*tasks.Task, m caldate.Month) DayBuckets[*tasks.Task] {
	urgent := make([]*tasks.Task, 0, len(ts))
	for _, t := range ts {
		if t.Urgent() {
			urgent = append(urgent, t)
		}
	}
	return BucketByDay(urgent, m, func(t *tasks.Task) caldate.Date { return t.DueDate.Date })
}

// Grid is the month laid out Sunday-first: Cells holds Leading zeros for the
// blank cells before day 1, then the days 1..n.
type Grid struct {
	Month   caldate.Month `json:"month"`
	Leading int           `json:"leading"`
	Days    int           `json:"days"`
	Cells   []int         `json:"cells"`
}

func MonthGrid(m caldate.Month) Grid {
	lead := caldate.FirstWeekday(m.Year, m.Month)
	days := m.Days()
	cells := make([]int, lead, lead+days)
	for d := 1; d <= days; d++ {
		cells = append(cells, d)
	}
	return Grid{Month: m, Leading: lead, Days: days, Cells: cells}
}
