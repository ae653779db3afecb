package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/pkg/caldate"
)

var clock = caldate.FixedClock{T: time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)}

func newTestService() *Service {
	store := docstore.NewMemoryStore()
	return NewService(
		docstore.NewCollection[Tool](store, ToolCollection),
		docstore.NewCollection[Session](store, SessionCollection),
		clock,
	)
}

func d(s string) caldate.Date { return caldate.MustParseDate(s) }

func TestService_ToolCatalogue(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, name := range []string{"Respiración", "arteterapia", " Caja de arena "} {
		if err := svc.CreateTool(ctx, &Tool{Name: name}); err != nil {
			t.Fatalf("create %q: %v", name, err)
		}
	}
	if err := svc.CreateTool(ctx, &Tool{Name: "   "}); err == nil {
		t.Error("expected name error")
	}

	items, _ := svc.ListTools(ctx)
	if len(items) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(items))
	}
	want := []string{"arteterapia", "Caja de arena", "Respiración"}
	for i, tool := range items {
		if tool.Name != want[i] {
			t.Errorf("tool %d: expected %q, got %q", i, want[i], tool.Name)
		}
		if tool.Color != DefaultColor {
			t.Errorf("tool %d: expected default color, got %q", i, tool.Color)
		}
	}

	items[0].Color = "#22c55e"
	if err := svc.UpdateTool(ctx, items[0]); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := svc.GetTool(ctx, items[0].ID)
	if got.Color != "#22c55e" {
		t.Errorf("expected new color, got %q", got.Color)
	}
	if err := svc.UpdateTool(ctx, &Tool{ID: "missing", Name: "x"}); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_CreateSession(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	s := &Session{PatientID: "p1", Tools: []string{"Respiración", " ", "Respiración", "Dibujo"}}
	if err := svc.CreateSession(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Date.String() != "2025-06-14" {
		t.Errorf("expected today, got %s", s.Date)
	}
	if len(s.Tools) != 2 {
		t.Errorf("expected deduplicated tools, got %q", s.Tools)
	}
	if !s.CreatedAt.Equal(clock.T) {
		t.Errorf("expected createdAt from clock, got %v", s.CreatedAt)
	}

	if err := svc.CreateSession(ctx, &Session{PatientID: "p1", Tools: []string{""}}); err == nil {
		t.Error("expected tools error")
	}
	if err := svc.CreateSession(ctx, &Session{Tools: []string{"x"}}); err == nil {
		t.Error("expected patient error")
	}
}

func TestService_ListSessionsAndStats(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	for _, name := range []string{"Respiración", "Dibujo", "Juego"} {
		_ = svc.CreateTool(ctx, &Tool{Name: name})
	}
	for _, s := range []*Session{
		{PatientID: "p1", PatientName: "Ana", Date: d("2025-06-02"), Tools: []string{"Dibujo"}},
		{PatientID: "p2", PatientName: "Bruno", Date: d("2025-06-12"), Tools: []string{"Dibujo", "Respiración"}},
		{PatientID: "p1", PatientName: "Ana", Date: d("2025-06-09"), Tools: []string{"Respiración"}},
		{PatientID: "p1", PatientName: "Ana", Date: d("2025-06-10"), Tools: []string{"Dibujo"}},
	} {
		if err := svc.CreateSession(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, _ := svc.ListSessions(ctx, SessionFilter{})
	if len(all) != 4 || all[0].Date.String() != "2025-06-12" || all[3].Date.String() != "2025-06-02" {
		t.Errorf("expected newest first, got %+v", all)
	}
	ana, _ := svc.ListSessionsByPatient(ctx, "p1")
	if len(ana) != 3 {
		t.Errorf("expected 3 sessions for p1, got %d", len(ana))
	}
	search, _ := svc.ListSessions(ctx, SessionFilter{Search: "bru"})
	if len(search) != 1 {
		t.Errorf("expected 1 result, got %d", len(search))
	}
	byTool, _ := svc.ListSessions(ctx, SessionFilter{Tool: "Respiración"})
	if len(byTool) != 2 {
		t.Errorf("expected 2 breathing sessions, got %d", len(byTool))
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.TotalSessions != 4 || st.Patients != 2 {
		t.Errorf("unexpected totals %+v", st)
	}
	if st.MostUsed.Name != "Dibujo" || st.MostUsed.Count != 3 {
		t.Errorf("expected Dibujo x3, got %+v", st.MostUsed)
	}
	if len(st.Usage) != 3 {
		t.Errorf("expected usage per tool, got %+v", st.Usage)
	}
}

func TestService_StatsEmpty(t *testing.T) {
	st, err := newTestService().Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.MostUsed.Name != "-" || st.TotalSessions != 0 {
		t.Errorf("unexpected empty stats %+v", st)
	}
}

func TestService_UpdateSession(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	s := &Session{PatientID: "p1", Date: d("2025-06-02"), Tools: []string{"Dibujo"}}
	_ = svc.CreateSession(ctx, s)

	upd := &Session{ID: s.ID, PatientID: "p1", Date: d("2025-06-03"), Tools: []string{"Juego"}, Notes: "bien"}
	if err := svc.UpdateSession(ctx, upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.GetSession(ctx, s.ID)
	if got.Tools[0] != "Juego" || got.Notes != "bien" || !got.CreatedAt.Equal(s.CreatedAt) {
		t.Errorf("unexpected session %+v", got)
	}
	if err := svc.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetSession(ctx, s.ID); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_UpdateClearsOptionalFields(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tool := &Tool{Name: "Dibujo", Description: "libre"}
	if err := svc.CreateTool(ctx, tool); err != nil {
		t.Fatalf("create tool: %v", err)
	}
	if err := svc.UpdateTool(ctx, &Tool{ID: tool.ID, Name: "Dibujo"}); err != nil {
		t.Fatalf("update tool: %v", err)
	}
	got, _ := svc.GetTool(ctx, tool.ID)
	if got.Description != "" {
		t.Errorf("expected description cleared, got %q", got.Description)
	}

	s := &Session{PatientID: "p1", Date: d("2025-06-02"), Tools: []string{"Dibujo"}, Notes: "bien"}
	_ = svc.CreateSession(ctx, s)
	put := &Session{ID: s.ID, PatientID: "p1", Date: d("2025-06-02"), Tools: []string{"Dibujo"}}
	if err := svc.UpdateSession(ctx, put); err != nil {
		t.Fatalf("update session: %v", err)
	}
	stored, _ := svc.GetSession(ctx, s.ID)
	if stored.Notes != "" {
		t.Errorf("expected notes cleared, got %q", stored.Notes)
	}
	if !put.CreatedAt.Equal(s.CreatedAt) {
		t.Errorf("expected caller to see the stored createdAt, got %v", put.CreatedAt)
	}
}
