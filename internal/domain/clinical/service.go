package clinical

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/pkg/caldate"
)

type Service struct {
	histories docstore.Repository[History]
	notes     docstore.Repository[Note]
	clock     caldate.Clock
}

func NewService(histories docstore.Repository[History], notes docstore.Repository[Note], clock caldate.Clock) *Service {
	return &Service{histories: histories, notes: notes, clock: clock}
}

// -- Clinical History --

// SaveHistory creates the patient's history or overwrites the existing one.
// h.ID is set to the stored record's id either way.
func (s *Service) SaveHistory(ctx context.Context, h *History) error {
	if h.PatientID == "" {
		return fmt.Errorf("patientId is required")
	}
	h.LastUpdate = s.clock.Now().UTC()

	existing, err := s.histories.List(ctx, docstore.Where("patientId", h.PatientID))
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		if err := s.histories.Create(ctx, h); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Info().Str("patient_id", h.PatientID).Msg("clinical history created")
		return nil
	}
	h.ID = existing[0].ID
	return s.histories.Update(ctx, h.ID, h)
}

func (s *Service) GetHistoryByPatient(ctx context.Context, patientID string) (*History, error) {
	items, err := s.histories.List(ctx, docstore.Where("patientId", patientID))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, docstore.ErrNotFound
	}
	return items[0], nil
}

func (s *Service) ListHistories(ctx context.Context) ([]*History, error) {
	return s.histories.List(ctx)
}

func (s *Service) DeleteHistory(ctx context.Context, patientID string) error {
	h, err := s.GetHistoryByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	return s.histories.Delete(ctx, h.ID)
}

// -- Therapy Notes --

func validateNote(n *Note) error {
	if n.PatientID == "" {
		return fmt.Errorf("patientId is required")
	}
	if strings.TrimSpace(n.Content) == "" {
		return fmt.Errorf("content is required")
	}
	if n.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	n.Tags = cleanTags(n.Tags)
	return nil
}

// cleanTags trims, drops empties and removes duplicates, keeping order.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (s *Service) CreateNote(ctx context.Context, n *Note) error {
	if n.Date.IsZero() {
		n.Date = caldate.Today(s.clock)
	}
	if err := validateNote(n); err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	return s.notes.Create(ctx, n)
}

func (s *Service) GetNote(ctx context.Context, id string) (*Note, error) {
	return s.notes.Get(ctx, id)
}

func (s *Service) UpdateNote(ctx context.Context, n *Note) error {
	if err := validateNote(n); err != nil {
		return err
	}
	prev, err := s.notes.Get(ctx, n.ID)
	if err != nil {
		return err
	}
	n.CreatedAt = prev.CreatedAt
	n.UpdatedAt = s.clock.Now().UTC()
	return s.notes.Update(ctx, n.ID, n)
}

func (s *Service) DeleteNote(ctx context.Context, id string) error {
	return s.notes.Delete(ctx, id)
}

// ListNotes returns matching notes, newest session first.
func (s *Service) ListNotes(ctx context.Context, f NoteFilter) ([]*Note, error) {
	var filters []docstore.Filter
	if f.PatientID != "" {
		filters = append(filters, docstore.Where("patientId", f.PatientID))
	}
	items, err := s.notes.List(ctx, filters...)
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	kept := items[:0]
	for _, n := range items {
		if search != "" && !strings.Contains(strings.ToLower(n.PatientName), search) {
			continue
		}
		if f.Tag != "" && !hasTag(n, f.Tag) {
			continue
		}
		kept = append(kept, n)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Date.After(kept[j].Date)
	})
	return kept, nil
}

func hasTag(n *Note, tag string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func (s *Service) ListNotesByPatient(ctx context.Context, patientID string) ([]*Note, error) {
	return s.ListNotes(ctx, NoteFilter{PatientID: patientID})
}

// NotesOverview groups notes by patient, most recently seen patient first.
func (s *Service) NotesOverview(ctx context.Context) ([]PatientNotes, error) {
	notes, err := s.ListNotes(ctx, NoteFilter{})
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	var out []PatientNotes
	for _, n := range notes {
		i, ok := index[n.PatientID]
		if !ok {
			index[n.PatientID] = len(out)
			out = append(out, PatientNotes{PatientID: n.PatientID, PatientName: n.PatientName, LastNote: n.Date})
			i = len(out) - 1
		}
		out[i].Count++
	}
	return out, nil
}
