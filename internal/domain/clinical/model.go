package clinical

import (
	"time"

	"github.com/agenda/agenda/pkg/caldate"
)

const (
	HistoryCollection = "clinicalHistories"
	NoteCollection    = "therapyNotes"
)

// History is a patient's clinical record. A patient has at most one.
type History struct {
	ID                 string    `json:"id"`
	PatientID          string    `json:"patientId"`
	Medication         string    `json:"medication"`
	PreviousTreatments string    `json:"previousTreatments"`
	ConsultationReason string    `json:"consultationReason"`
	DSMDiagnosis       string    `json:"dsmDiagnosis"`
	Anamnesis          string    `json:"anamnesis"`
	LastUpdate         time.Time `json:"lastUpdate"`
}

func (h *History) SetID(id string) { h.ID = id }

// Note is a session note written after (or during) a therapy session.
type Note struct {
	ID            string       `json:"id"`
	PatientID     string       `json:"patientId" validate:"required"`
	PatientName   string       `json:"patientName"`
	Date          caldate.Date `json:"date"`
	Content       string       `json:"content" validate:"required"`
	Tags          []string     `json:"tags"`
	VoiceRecorded bool         `json:"voiceRecorded"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func (n *Note) SetID(id string) { n.ID = id }

// NoteFilter narrows ListNotes. Search matches the patient name.
type NoteFilter struct {
	PatientID string
	Search    string
	Tag       string
}

// PatientNotes is one row of the notes overview: how many notes a patient
// has and the date of the latest.
type PatientNotes struct {
	PatientID   string       `json:"patientId"`
	PatientName string       `json:"patientName"`
	Count       int          `json:"notesCount"`
	LastNote    caldate.Date `json:"lastNote"`
}
