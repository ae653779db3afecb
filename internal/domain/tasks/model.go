package tasks

import (
	"time"

	"github.com/agenda/agenda/pkg/caldate"
)

const Collection = "pendientes"

const (
	CategoryReport         = "informe"
	CategoryAppointment    = "turno"
	CategoryContact        = "contacto"
	CategoryAdministrative = "administrativo"
	CategoryPersonal       = "personal"
	CategoryOther          = "otro"
)

const (
	PriorityHigh   = "alta"
	PriorityMedium = "media"
	PriorityLow    = "baja"
)

var priorityRank = map[string]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}

// DueDate reads YYYY-MM-DD or the legacy DD/MM/YYYY form and always writes
// YYYY-MM-DD.
type DueDate struct {
	caldate.Date
}

func (d *DueDate) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = DueDate{}
		return nil
	}
	parsed, err := caldate.ParseLooseDate(string(b))
	if err != nil {
		return err
	}
	d.Date = parsed
	return nil
}

// Task is a "pendiente": a to-do item of the practice.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	DueDate     DueDate    `json:"dueDate"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (t *Task) SetID(id string) { t.ID = id }

// Urgent reports whether the task is open and high priority.
func (t *Task) Urgent() bool {
	return !t.Completed && t.Priority == PriorityHigh
}

// Filter narrows List. Status is "all" (or empty), "completed" or "pending".
type Filter struct {
	Category string
	Priority string
	Status   string
}
