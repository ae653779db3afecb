package calendar

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agenda/agenda/internal/domain/patients"
	"github.com/agenda/agenda/internal/domain/scheduling"
	"github.com/agenda/agenda/internal/domain/tasks"
	"github.com/agenda/agenda/pkg/caldate"
)

type AppointmentSource interface {
	ListByMonth(ctx context.Context, m caldate.Month) ([]*scheduling.Appointment, error)
}

type PatientSource interface {
	ListPatients(ctx context.Context) ([]*patients.Patient, error)
}

type TaskSource interface {
	ListTasks(ctx context.Context, f tasks.Filter) ([]*tasks.Task, error)
}

// MonthView is everything the calendar page needs for one month.
type MonthView struct {
	Month        caldate.Month                       `json:"month"`
	Grid         Grid                                `json:"grid"`
	Appointments DayBuckets[*scheduling.Appointment] `json:"appointments"`
	Birthdays    DayBuckets[Birthday]                `json:"birthdays"`
	Tasks        DayBuckets[*tasks.Task]             `json:"tasks"`
}

// DayView is the detail panel for a single day.
type DayView struct {
	Date         caldate.Date              `json:"date"`
	Label        string                    `json:"label"`
	Appointments []*scheduling.Appointment `json:"appointments"`
	Birthdays    []Birthday                `json:"birthdays"`
	Tasks        []*tasks.Task             `json:"tasks"`
}

type Service struct {
	appts    AppointmentSource
	patients PatientSource
	tasks    TaskSource
	clock    caldate.Clock
	loc      *time.Location
	session  time.Duration
}

func NewService(appts AppointmentSource, ps PatientSource, ts TaskSource, clock caldate.Clock, loc *time.Location, session time.Duration) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if session <= 0 {
		session = 45 * time.Minute
	}
	return &Service{appts: appts, patients: ps, tasks: ts, clock: clock, loc: loc, session: session}
}

// CurrentMonth is the month containing today's date.
func (s *Service) CurrentMonth() caldate.Month {
	return caldate.MonthOf(caldate.Today(s.clock))
}

// MonthView loads the three collections concurrently and buckets them. Nothing
// is cached between calls. On a pinned Postgres connection the store runs the
// three queries one after another.
func (s *Service) MonthView(ctx context.Context, m caldate.Month) (*MonthView, error) {
	var (
		appts []*scheduling.Appointment
		ps    []*patients.Patient
		ts    []*tasks.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		appts, err = s.appts.ListByMonth(gctx, m)
		return err
	})
	g.Go(func() error {
		var err error
		ps, err = s.patients.ListPatients(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ts, err = s.tasks.ListTasks(gctx, tasks.Filter{Status: "pending"})
		return err
	})
	if err := g.Wait(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("month", m.String()).Msg("calendar month load failed")
		return nil, err
	}

	return &MonthView{
		Month:        m,
		Grid:         MonthGrid(m),
		Appointments: AppointmentsByDay(appts, m),
		Birthdays:    BirthdaysByDay(ps, m),
		Tasks:        TasksByDay(ts, m),
	}, nil
}

func (s *Service) DayView(ctx context.Context, d caldate.Date) (*DayView, error) {
	mv, err := s.MonthView(ctx, caldate.MonthOf(d))
	if err != nil {
		return nil, err
	}
	return &DayView{
		Date:         d,
		Label:        LongDate(d),
		Appointments: nonNil(mv.Appointments[d.Day]),
		Birthdays:    nonNil(mv.Birthdays[d.Day]),
		Tasks:        nonNil(mv.Tasks[d.Day]),
	}, nil
}

// ICS exports the month's appointments as an iCalendar feed.
func (s *Service) ICS(ctx context.Context, m caldate.Month) (string, error) {
	appts, err := s.appts.ListByMonth(ctx, m)
	if err != nil {
		return "", err
	}
	scheduling.SortChronologically(appts)
	return ExportICS(appts, s.loc, s.session, s.clock.Now()), nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
