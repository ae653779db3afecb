package patients

import (
	"github.com/agenda/agenda/pkg/caldate"
)

const Collection = "patients"

// AttendanceSlot is one cell of the paper-style annual attendance sheet.
// Date is whatever the therapist wrote in the cell, usually the day number.
type AttendanceSlot struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// AnnualCalendar maps year -> month index (0 = January) -> slots.
type AnnualCalendar map[int]map[int][]AttendanceSlot

type Patient struct {
	ID             string         `json:"id"`
	Name           string         `json:"name" validate:"required"`
	DNI            string         `json:"dni" validate:"required"`
	Phone          string         `json:"phone,omitempty"`
	Email          string         `json:"email,omitempty" validate:"omitempty,email"`
	Insurance      string         `json:"insurance,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	BirthDate      caldate.Date   `json:"birthDate"`
	AnnualCalendar AnnualCalendar `json:"annualCalendar,omitempty"`
}

func (p *Patient) SetID(id string) { p.ID = id }

// HasBirthDate reports whether a birth date was recorded.
func (p *Patient) HasBirthDate() bool { return !p.BirthDate.IsZero() }
