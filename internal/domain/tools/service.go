package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/pkg/caldate"
)

type Service struct {
	tools    docstore.Repository[Tool]
	sessions docstore.Repository[Session]
	clock    caldate.Clock
}

func NewService(tools docstore.Repository[Tool], sessions docstore.Repository[Session], clock caldate.Clock) *Service {
	return &Service{tools: tools, sessions: sessions, clock: clock}
}

// -- Tool catalogue --

func normalizeTool(t *Tool) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if t.Color == "" {
		t.Color = DefaultColor
	}
	return nil
}

func (s *Service) CreateTool(ctx context.Context, t *Tool) error {
	if err := normalizeTool(t); err != nil {
		return err
	}
	return s.tools.Create(ctx, t)
}

func (s *Service) GetTool(ctx context.Context, id string) (*Tool, error) {
	return s.tools.Get(ctx, id)
}

func (s *Service) UpdateTool(ctx context.Context, t *Tool) error {
	if err := normalizeTool(t); err != nil {
		return err
	}
	patch := map[string]any{
		"name":        t.Name,
		"description": t.Description,
		"color":       t.Color,
	}
	if err := s.tools.Update(ctx, t.ID, patch); err != nil {
		return err
	}
	stored, err := s.tools.Get(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = *stored
	return nil
}

func (s *Service) DeleteTool(ctx context.Context, id string) error {
	return s.tools.Delete(ctx, id)
}

// ListTools returns the catalogue ordered by name.
func (s *Service) ListTools(ctx context.Context) ([]*Tool, error) {
	items, err := s.tools.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

// -- Sessions --

func (s *Service) normalizeSession(sess *Session) error {
	if sess.PatientID == "" {
		return fmt.Errorf("patientId is required")
	}
	if sess.Date.IsZero() {
		sess.Date = caldate.Today(s.clock)
	}
	names := make([]string, 0, len(sess.Tools))
	seen := make(map[string]bool)
	for _, n := range sess.Tools {
		n = strings.TrimSpace(n)
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("at least one tool is required")
	}
	sess.Tools = names
	return nil
}

func (s *Service) CreateSession(ctx context.Context, sess *Session) error {
	if err := s.normalizeSession(sess); err != nil {
		return err
	}
	sess.CreatedAt = s.clock.Now().UTC()
	return s.sessions.Create(ctx, sess)
}

func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	return s.sessions.Get(ctx, id)
}

func (s *Service) UpdateSession(ctx context.Context, sess *Session) error {
	if err := s.normalizeSession(sess); err != nil {
		return err
	}
	patch := map[string]any{
		"patientId":   sess.PatientID,
		"patientName": sess.PatientName,
		"date":        sess.Date,
		"tools":       sess.Tools,
		"notes":       sess.Notes,
	}
	if err := s.sessions.Update(ctx, sess.ID, patch); err != nil {
		return err
	}
	stored, err := s.sessions.Get(ctx, sess.ID)
	if err != nil {
		return err
	}
	*sess = *stored
	return nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

// ListSessions returns matching sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, f SessionFilter) ([]*Session, error) {
	var filters []docstore.Filter
	if f.PatientID != "" {
		filters = append(filters, docstore.Where("patientId", f.PatientID))
	}
	items, err := s.sessions.List(ctx, filters...)
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	kept := items[:0]
	for _, sess := range items {
		if search != "" && !strings.Contains(strings.ToLower(sess.PatientName), search) {
			continue
		}
		if f.Tool != "" && !usesTool(sess, f.Tool) {
			continue
		}
		kept = append(kept, sess)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Date.After(kept[j].Date)
	})
	return kept, nil
}

func (s *Service) ListSessionsByPatient(ctx context.Context, patientID string) ([]*Session, error) {
	return s.ListSessions(ctx, SessionFilter{PatientID: patientID})
}

func usesTool(sess *Session, name string) bool {
	for _, t := range sess.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// Stats counts sessions, distinct patients and per-tool usage. Ties for the
// most used tool go to the tool listed first in the catalogue.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	catalogue, err := s.ListTools(ctx)
	if err != nil {
		return Stats{}, err
	}
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{TotalSessions: len(sessions), MostUsed: ToolUsage{Name: "-"}}
	patients := make(map[string]bool)
	for _, sess := range sessions {
		patients[sess.PatientID] = true
	}
	st.Patients = len(patients)

	st.Usage = make([]ToolUsage, 0, len(catalogue))
	for _, t := range catalogue {
		u := ToolUsage{Name: t.Name}
		for _, sess := range sessions {
			if usesTool(sess, t.Name) {
				u.Count++
			}
		}
		st.Usage = append(st.Usage, u)
		if u.Count > st.MostUsed.Count {
			st.MostUsed = u
		}
	}
	return st, nil
}
