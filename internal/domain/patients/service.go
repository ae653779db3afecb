package patients

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agenda/agenda/internal/domain/scheduling"
	"github.com/agenda/agenda/internal/platform/docstore"
)

// AppointmentLister is the part of the scheduling service patients need.
type AppointmentLister interface {
	ListByPatient(ctx context.Context, patientID string) ([]*scheduling.Appointment, error)
}

type Service struct {
	patients     docstore.Repository[Patient]
	appointments AppointmentLister
}

func NewService(repo docstore.Repository[Patient], appts AppointmentLister) *Service {
	return &Service{patients: repo, appointments: appts}
}

var validSlotStatuses = map[string]bool{
	scheduling.StatusNone:      true,
	scheduling.StatusAttended:  true,
	scheduling.StatusAbsent:    true,
	scheduling.StatusCancelled: true,
	scheduling.StatusHoliday:   true,
}

func validate(p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.DNI) == "" {
		return fmt.Errorf("dni is required")
	}
	return validateCalendar(p.AnnualCalendar)
}

func validateCalendar(cal AnnualCalendar) error {
	for year, months := range cal {
		if err := validateYear(year, months); err != nil {
			return err
		}
	}
	return nil
}

func validateYear(year int, months map[int][]AttendanceSlot) error {
	for m, slots := range months {
		if m < 0 || m > 11 {
			return fmt.Errorf("annual calendar %d: month index %d out of range", year, m)
		}
		for i, s := range slots {
			if !validSlotStatuses[s.Status] {
				return fmt.Errorf("annual calendar %d/%d slot %d: invalid status %q", year, m, i, s.Status)
			}
		}
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.patients.Get(ctx, id)
}

// ListPatients returns all patients ordered by name.
func (s *Service) ListPatients(ctx context.Context) ([]*Patient, error) {
	items, err := s.patients.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

// Search matches a case-insensitive substring of the name or a substring of
// the dni. An empty term matches everyone.
func (s *Service) Search(ctx context.Context, term string) ([]*Patient, error) {
	items, err := s.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return items, nil
	}
	lower := strings.ToLower(term)
	var out []*Patient
	for _, p := range items {
		if strings.Contains(strings.ToLower(p.Name), lower) || strings.Contains(p.DNI, term) {
			out = append(out, p)
		}
	}
	return out, nil
}

// UpdatePatient replaces the editable fields. The annual calendar is only
// written through SaveAnnualCalendar and is left as stored.
func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	patch := map[string]any{
		"name":      p.Name,
		"dni":       p.DNI,
		"phone":     p.Phone,
		"email":     p.Email,
		"insurance": p.Insurance,
		"notes":     p.Notes,
		"birthDate": p.BirthDate,
	}
	if err := s.patients.Update(ctx, p.ID, patch); err != nil {
		return err
	}
	stored, err := s.patients.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

func (s *Service) DeletePatient(ctx context.Context, id string) error {
	return s.patients.Delete(ctx, id)
}

// SaveAnnualCalendar replaces one year of the attendance sheet and keeps the
// other years.
func (s *Service) SaveAnnualCalendar(ctx context.Context, id string, year int, months map[int][]AttendanceSlot) (*Patient, error) {
	if year < 1900 || year > 9999 {
		return nil, fmt.Errorf("invalid year %d", year)
	}
	if err := validateYear(year, months); err != nil {
		return nil, err
	}
	p, err := s.patients.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AnnualCalendar == nil {
		p.AnnualCalendar = AnnualCalendar{}
	}
	p.AnnualCalendar[year] = months
	if err := s.patients.Update(ctx, id, map[string]any{"annualCalendar": p.AnnualCalendar}); err != nil {
		return nil, err
	}
	return p, nil
}

// ListAppointments returns the patient's appointments, oldest first.
func (s *Service) ListAppointments(ctx context.Context, patientID string) ([]*scheduling.Appointment, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	return s.appointments.ListByPatient(ctx, patientID)
}
