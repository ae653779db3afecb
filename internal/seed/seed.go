// Package seed loads a YAML fixture of patients, expenses, tasks and weekly
// series and writes it through the domain services.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/agenda/agenda/internal/domain/billing"
	"github.com/agenda/agenda/internal/domain/patients"
	"github.com/agenda/agenda/internal/domain/scheduling"
	"github.com/agenda/agenda/internal/domain/tasks"
	"github.com/agenda/agenda/pkg/caldate"
)

// Fixture is the top-level document of a seed file.
type Fixture struct {
	Patients []Patient `yaml:"patients"`
	Expenses []Expense `yaml:"expenses"`
	Tasks    []Task    `yaml:"tasks"`
	Series   []Series  `yaml:"series"`
}

// Patient carries a Ref that series entries use to point at it.
type Patient struct {
	Ref       string       `yaml:"ref"`
	Name      string       `yaml:"name"`
	DNI       string       `yaml:"dni"`
	Phone     string       `yaml:"phone"`
	Email     string       `yaml:"email"`
	Insurance string       `yaml:"insurance"`
	Notes     string       `yaml:"notes"`
	BirthDate caldate.Date `yaml:"birthDate"`
}

type Expense struct {
	Date        caldate.Date `yaml:"date"`
	Category    string       `yaml:"category"`
	Description string       `yaml:"description"`
	Amount      float64      `yaml:"amount"`
}

type Task struct {
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Category    string        `yaml:"category"`
	Priority    string        `yaml:"priority"`
	DueDate     tasks.DueDate `yaml:"dueDate"`
}

type Series struct {
	Patient   string            `yaml:"patient"`
	Amount    float64           `yaml:"amount"`
	Time      caldate.TimeOfDay `yaml:"time"`
	WeekDays  []int             `yaml:"weekDays"`
	StartDate caldate.Date      `yaml:"startDate"`
	EndDate   caldate.Date      `yaml:"endDate"`
}

// Parse decodes a fixture, rejecting unknown keys.
func Parse(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed fixture: %w", err)
	}
	return &f, nil
}

func Load(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed fixture: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

type PatientCreator interface {
	CreatePatient(ctx context.Context, p *patients.Patient) error
}

type ExpenseCreator interface {
	CreateExpense(ctx context.Context, e *billing.Expense) error
}

type TaskCreator interface {
	CreateTask(ctx context.Context, t *tasks.Task) error
}

type SeriesCreator interface {
	CreateSeries(ctx context.Context, req scheduling.RecurrenceRequest, atomic bool) (scheduling.BulkReport, error)
}

// Services are the write paths a fixture is applied through.
type Services struct {
	Patients     PatientCreator
	Expenses     ExpenseCreator
	Tasks        TaskCreator
	Appointments SeriesCreator
}

// Result counts what was written.
type Result struct {
	Patients     int `json:"patients"`
	Expenses     int `json:"expenses"`
	Tasks        int `json:"tasks"`
	Series       int `json:"series"`
	Appointments int `json:"appointments"`
}

// Apply writes the fixture in dependency order. It stops at the first
// failure; whatever was written before it stays. Series are stored
// atomically so a failed series leaves no partial instances.
func Apply(ctx context.Context, f *Fixture, svc Services) (Result, error) {
	var res Result
	logger := zerolog.Ctx(ctx)

	refs := make(map[string]*patients.Patient, len(f.Patients))
	for i, fp := range f.Patients {
		p := &patients.Patient{
			Name:      fp.Name,
			DNI:       fp.DNI,
			Phone:     fp.Phone,
			Email:     fp.Email,
			Insurance: fp.Insurance,
			Notes:     fp.Notes,
			BirthDate: fp.BirthDate,
		}
		if err := svc.Patients.CreatePatient(ctx, p); err != nil {
			return res, fmt.Errorf("patient %d (%s): %w", i, fp.Name, err)
		}
		if fp.Ref != "" {
			if _, dup := refs[fp.Ref]; dup {
				return res, fmt.Errorf("patient %d: duplicate ref %q", i, fp.Ref)
			}
			refs[fp.Ref] = p
		}
		res.Patients++
	}

	for i, fe := range f.Expenses {
		e := &billing.Expense{Date: fe.Date, Category: fe.Category, Description: fe.Description, Amount: fe.Amount}
		if err := svc.Expenses.CreateExpense(ctx, e); err != nil {
			return res, fmt.Errorf("expense %d: %w", i, err)
		}
		res.Expenses++
	}

	for i, ft := range f.Tasks {
		t := &tasks.Task{
			Title:       ft.Title,
			Description: ft.Description,
			Category:    ft.Category,
			Priority:    ft.Priority,
			DueDate:     ft.DueDate,
		}
		if err := svc.Tasks.CreateTask(ctx, t); err != nil {
			return res, fmt.Errorf("task %d: %w", i, err)
		}
		res.Tasks++
	}

	for i, fs := range f.Series {
		p, ok := refs[fs.Patient]
		if !ok {
			return res, fmt.Errorf("series %d: unknown patient ref %q", i, fs.Patient)
		}
		report, err := svc.Appointments.CreateSeries(ctx, scheduling.RecurrenceRequest{
			PatientID:   p.ID,
			PatientName: p.Name,
			Insurance:   p.Insurance,
			Amount:      fs.Amount,
			Time:        fs.Time,
			WeekDays:    fs.WeekDays,
			StartDate:   fs.StartDate,
			EndDate:     fs.EndDate,
		}, true)
		if err != nil {
			return res, fmt.Errorf("series %d (%s): %w", i, fs.Patient, err)
		}
		res.Series++
		res.Appointments += len(report.Created)
		logger.Debug().Str("series_id", report.SeriesID).Int("appointments", len(report.Created)).Msg("seeded series")
	}

	logger.Info().
		Int("patients", res.Patients).
		Int("expenses", res.Expenses).
		Int("tasks", res.Tasks).
		Int("appointments", res.Appointments).
		Msg("seed applied")
	return res, nil
}
