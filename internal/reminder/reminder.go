// Package reminder builds the practice's daily digest: today's birthdays,
// urgent tasks that are due or overdue, and tomorrow's sessions with a
// WhatsApp reminder link for each patient.
package reminder

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/domain/calendar"
	"github.com/agenda/agenda/internal/domain/patients"
	"github.com/agenda/agenda/internal/domain/scheduling"
	"github.com/agenda/agenda/internal/domain/tasks"
	"github.com/agenda/agenda/internal/platform/db"
	"github.com/agenda/agenda/internal/platform/webhook"
	"github.com/agenda/agenda/pkg/caldate"
)

// EventType is the webhook event type of a delivered digest.
const EventType = "agenda.daily_digest"

type DayViewer interface {
	DayView(ctx context.Context, d caldate.Date) (*calendar.DayView, error)
}

type OverdueLister interface {
	Overdue(ctx context.Context, day caldate.Date) ([]*tasks.Task, error)
}

type PatientLister interface {
	ListPatients(ctx context.Context) ([]*patients.Patient, error)
}

// Notifier delivers a finished digest. *webhook.Sender satisfies it.
type Notifier interface {
	Send(ctx context.Context, eventType, tenantID string, payload any) (*webhook.DeliveryAttempt, error)
}

// SessionReminder is one of tomorrow's sessions. WhatsApp is empty when the
// patient has no usable phone.
type SessionReminder struct {
	AppointmentID string            `json:"appointmentId"`
	PatientID     string            `json:"patientId"`
	PatientName   string            `json:"patientName"`
	Date          caldate.Date      `json:"date"`
	Time          caldate.TimeOfDay `json:"time"`
	WhatsApp      string            `json:"whatsapp,omitempty"`
}

type Digest struct {
	Date      caldate.Date        `json:"date"`
	Birthdays []calendar.Birthday `json:"birthdays"`
	Tasks     []*tasks.Task       `json:"tasks"`
	Sessions  []SessionReminder   `json:"sessions"`
}

// Empty reports whether there is nothing to tell.
func (d *Digest) Empty() bool {
	return len(d.Birthdays) == 0 && len(d.Tasks) == 0 && len(d.Sessions) == 0
}

type Service struct {
	days     DayViewer
	tasks    OverdueLister
	patients PatientLister
	clock    caldate.Clock
	notifier Notifier
}

// NewService wires the digest sources. notifier may be nil, in which case
// digests are only logged.
func NewService(days DayViewer, ts OverdueLister, ps PatientLister, clock caldate.Clock, notifier Notifier) *Service {
	return &Service{days: days, tasks: ts, patients: ps, clock: clock, notifier: notifier}
}

// Build assembles the digest for day without delivering it.
func (s *Service) Build(ctx context.Context, day caldate.Date) (*Digest, error) {
	today, err := s.days.DayView(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load day view: %w", err)
	}
	overdue, err := s.tasks.Overdue(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load overdue tasks: %w", err)
	}
	tomorrow, err := s.days.DayView(ctx, day.AddDays(1))
	if err != nil {
		return nil, fmt.Errorf("load next day view: %w", err)
	}
	sessions, err := s.sessionReminders(ctx, tomorrow.Appointments)
	if err != nil {
		return nil, err
	}

	d := &Digest{
		Date:      day,
		Birthdays: today.Birthdays,
		Tasks:     overdue,
		Sessions:  sessions,
	}
	if d.Tasks == nil {
		d.Tasks = []*tasks.Task{}
	}
	return d, nil
}

func (s *Service) sessionReminders(ctx context.Context, appts []*scheduling.Appointment) ([]SessionReminder, error) {
	out := []SessionReminder{}
	if len(appts) == 0 {
		return out, nil
	}
	ps, err := s.patients.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	phones := make(map[string]string, len(ps))
	for _, p := range ps {
		phones[p.ID] = p.Phone
	}
	for _, a := range appts {
		if a.Status == scheduling.StatusCancelled || a.Status == scheduling.StatusHoliday {
			continue
		}
		out = append(out, SessionReminder{
			AppointmentID: a.ID,
			PatientID:     a.PatientID,
			PatientName:   a.PatientName,
			Date:          a.Date,
			Time:          a.Time,
			WhatsApp:      calendar.WhatsAppLink(phones[a.PatientID], calendar.AppointmentReminderMessage(a.PatientName, a.Date, a.Time)),
		})
	}
	return out, nil
}

// Run builds today's digest, logs it and hands it to the notifier. Empty
// digests are logged but not delivered.
func (s *Service) Run(ctx context.Context) (*Digest, error) {
	logger := zerolog.Ctx(ctx)
	day := caldate.Today(s.clock)

	d, err := s.Build(ctx, day)
	if err != nil {
		logger.Error().Err(err).Str("date", day.String()).Msg("daily digest failed")
		return nil, err
	}
	logger.Info().
		Str("date", day.String()).
		Int("birthdays", len(d.Birthdays)).
		Int("overdue_tasks", len(d.Tasks)).
		Int("sessions_tomorrow", len(d.Sessions)).
		Msg("daily digest built")

	if s.notifier == nil || d.Empty() {
		return d, nil
	}
	attempt, err := s.notifier.Send(ctx, EventType, db.TenantFromContext(ctx), d)
	if err != nil {
		logger.Warn().Err(err).Msg("daily digest delivery failed")
		return d, fmt.Errorf("deliver digest: %w", err)
	}
	logger.Info().Str("event_id", attempt.EventID).Int("status", attempt.StatusCode).Msg("daily digest delivered")
	return d, nil
}
