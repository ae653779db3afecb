package scheduling

import (
	"github.com/agenda/agenda/pkg/caldate"
)

// Collection is the document store collection holding appointments.
const Collection = "appointments"

// Appointment status codes as written on the attendance sheet.
const (
	StatusNone      = ""
	StatusAttended  = "S"
	StatusAbsent    = "D"
	StatusCancelled = "//"
	StatusHoliday   = "F"
)

const (
	PaymentCash     = "efectivo"
	PaymentTransfer = "transferencia"
)

// Appointment is one concrete session with a patient.
type Appointment struct {
	ID            string            `json:"id"`
	PatientID     string            `json:"patientId" validate:"required"`
	PatientName   string            `json:"patientName"`
	Date          caldate.Date      `json:"date"`
	Time          caldate.TimeOfDay `json:"time"`
	Amount        float64           `json:"amount" validate:"gte=0"`
	Paid          bool              `json:"paid"`
	Insurance     string            `json:"insurance,omitempty"`
	Recurring     bool              `json:"recurring"`
	SeriesID      string            `json:"seriesId,omitempty"`
	Status        string            `json:"status"`
	PaymentMethod string            `json:"paymentMethod,omitempty"`
	Notes         string            `json:"notes,omitempty"`
}

func (a *Appointment) SetID(id string) { a.ID = id }

// RecurrenceRequest describes a weekly series to expand. It is never stored.
type RecurrenceRequest struct {
	PatientID   string            `json:"patientId" validate:"required"`
	PatientName string            `json:"patientName"`
	Insurance   string            `json:"insurance,omitempty"`
	Amount      float64           `json:"amount" validate:"gte=0"`
	Time        caldate.TimeOfDay `json:"time"`
	WeekDays    []int             `json:"weekDays"`
	StartDate   caldate.Date      `json:"startDate"`
	EndDate     caldate.Date      `json:"endDate"`
	// SeriesID is stamped on every instance. The service assigns one when empty.
	SeriesID string `json:"seriesId,omitempty"`
}

func (r RecurrenceRequest) instance(d caldate.Date) *Appointment {
	return &Appointment{
		PatientID:   r.PatientID,
		PatientName: r.PatientName,
		Insurance:   r.Insurance,
		Amount:      r.Amount,
		Time:        r.Time,
		Date:        d,
		Paid:        false,
		Recurring:   true,
		SeriesID:    r.SeriesID,
	}
}

// SeriesPreview is the dry-run result shown before a series is created.
type SeriesPreview struct {
	Count     int          `json:"count"`
	Total     float64      `json:"total"`
	StartDate caldate.Date `json:"startDate"`
	EndDate   caldate.Date `json:"endDate"`
	Rule      string       `json:"rrule,omitempty"`
}

// Filter narrows ListAppointments. Zero fields are ignored.
type Filter struct {
	PatientID string
	SeriesID  string
	Date      caldate.Date
	Month     *caldate.Month
}
