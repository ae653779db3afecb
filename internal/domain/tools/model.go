// Package tools keeps the catalogue of therapeutic tools and the sessions in
// which they were used with a patient.
package tools

import (
	"time"

	"github.com/agenda/agenda/pkg/caldate"
)

const (
	ToolCollection    = "availableTools"
	SessionCollection = "toolSessions"
)

// DefaultColor is used for tools created without one.
const DefaultColor = "#ef4444"

type Tool struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

func (t *Tool) SetID(id string) { t.ID = id }

// Session records which tools (by name) were used with a patient on a date.
type Session struct {
	ID          string       `json:"id"`
	PatientID   string       `json:"patientId" validate:"required"`
	PatientName string       `json:"patientName"`
	Date        caldate.Date `json:"date"`
	Tools       []string     `json:"tools" validate:"min=1"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

func (s *Session) SetID(id string) { s.ID = id }

// SessionFilter narrows ListSessions. Search matches the patient name.
type SessionFilter struct {
	PatientID string
	Search    string
	Tool      string
}

type ToolUsage struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats are the figures above the sessions list.
type Stats struct {
	TotalSessions int         `json:"totalSessions"`
	Patients      int         `json:"patientsWithSessions"`
	MostUsed      ToolUsage   `json:"mostUsedTool"`
	Usage         []ToolUsage `json:"usage"`
}
