package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agenda/agenda/internal/domain/calendar"
	"github.com/agenda/agenda/internal/domain/patients"
	"github.com/agenda/agenda/internal/domain/scheduling"
	"github.com/agenda/agenda/internal/domain/tasks"
	"github.com/agenda/agenda/internal/platform/db"
	"github.com/agenda/agenda/internal/platform/webhook"
	"github.com/agenda/agenda/pkg/caldate"
)

var clock = caldate.FixedClock{T: time.Date(2025, 6, 5, 8, 0, 0, 0, time.UTC)}

func d(s string) caldate.Date { return caldate.MustParseDate(s) }

type stubDays map[caldate.Date]*calendar.DayView

func (s stubDays) DayView(_ context.Context, day caldate.Date) (*calendar.DayView, error) {
	if v, ok := s[day]; ok {
		return v, nil
	}
	return &calendar.DayView{Date: day}, nil
}

type stubOverdue struct {
	items []*tasks.Task
	err   error
}

func (s stubOverdue) Overdue(context.Context, caldate.Date) ([]*tasks.Task, error) {
	return s.items, s.err
}

type stubPatients []*patients.Patient

func (s stubPatients) ListPatients(context.Context) ([]*patients.Patient, error) { return s, nil }

type recordingNotifier struct {
	calls   int
	tenant  string
	payload any
}

func (n *recordingNotifier) Send(_ context.Context, _, tenantID string, payload any) (*webhook.DeliveryAttempt, error) {
	n.calls++
	n.tenant = tenantID
	n.payload = payload
	return &webhook.DeliveryAttempt{EventID: "evt", StatusCode: http.StatusOK}, nil
}

func sampleDays() stubDays {
	return stubDays{
		d("2025-06-05"): {
			Date:      d("2025-06-05"),
			Birthdays: []calendar.Birthday{{PatientID: "p1", Name: "Ana", Age: 35}},
		},
		d("2025-06-06"): {
			Date: d("2025-06-06"),
			Appointments: []*scheduling.Appointment{
				{ID: "a1", PatientID: "p1", PatientName: "Ana", Date: d("2025-06-06"), Time: caldate.MustParseTimeOfDay("10:00")},
				{ID: "a2", PatientID: "p2", PatientName: "Luis", Date: d("2025-06-06"), Time: caldate.MustParseTimeOfDay("11:00"), Status: scheduling.StatusCancelled},
				{ID: "a3", PatientID: "p3", PatientName: "Sin Tel", Date: d("2025-06-06"), Time: caldate.MustParseTimeOfDay("12:00")},
			},
		},
	}
}

func samplePatients() stubPatients {
	return stubPatients{
		{ID: "p1", Name: "Ana", Phone: "11 5555-0001"},
		{ID: "p2", Name: "Luis", Phone: "11 5555-0002"},
		{ID: "p3", Name: "Sin Tel"},
	}
}

func TestService_Build(t *testing.T) {
	overdue := stubOverdue{items: []*tasks.Task{{ID: "t1", Title: "informe", Priority: tasks.PriorityHigh}}}
	svc := NewService(sampleDays(), overdue, samplePatients(), clock, nil)

	dg, err := svc.Build(context.Background(), d("2025-06-05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dg.Birthdays) != 1 || dg.Birthdays[0].Name != "Ana" {
		t.Errorf("expected Ana's birthday, got %+v", dg.Birthdays)
	}
	if len(dg.Tasks) != 1 {
		t.Errorf("expected 1 overdue task, got %d", len(dg.Tasks))
	}
	if len(dg.Sessions) != 2 {
		t.Fatalf("expected cancelled session skipped, got %d sessions", len(dg.Sessions))
	}
	if !strings.HasPrefix(dg.Sessions[0].WhatsApp, "https://wa.me/541155550001?text=") {
		t.Errorf("unexpected link %q", dg.Sessions[0].WhatsApp)
	}
	if dg.Sessions[1].WhatsApp != "" {
		t.Errorf("expected no link without phone, got %q", dg.Sessions[1].WhatsApp)
	}
}

func TestService_BuildEmpty(t *testing.T) {
	svc := NewService(stubDays{}, stubOverdue{}, stubPatients{}, clock, nil)
	dg, err := svc.Build(context.Background(), d("2025-06-05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dg.Empty() {
		t.Errorf("expected empty digest, got %+v", dg)
	}
	b, _ := json.Marshal(dg)
	if !strings.Contains(string(b), `"tasks":[]`) || !strings.Contains(string(b), `"sessions":[]`) {
		t.Errorf("expected empty arrays in JSON, got %s", b)
	}
}

func TestService_BuildError(t *testing.T) {
	svc := NewService(stubDays{}, stubOverdue{err: errors.New("boom")}, stubPatients{}, clock, nil)
	if _, err := svc.Build(context.Background(), d("2025-06-05")); err == nil {
		t.Fatal("expected error")
	}
}

func TestService_RunNotifies(t *testing.T) {
	n := &recordingNotifier{}
	svc := NewService(sampleDays(), stubOverdue{}, samplePatients(), clock, n)

	ctx := db.WithTenant(context.Background(), "clinic1")
	dg, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dg.Date != d("2025-06-05") {
		t.Errorf("expected digest for clock date, got %s", dg.Date)
	}
	if n.calls != 1 || n.tenant != "clinic1" {
		t.Errorf("expected one delivery for clinic1, got %d for %q", n.calls, n.tenant)
	}
}

func TestService_RunSkipsEmptyDigest(t *testing.T) {
	n := &recordingNotifier{}
	svc := NewService(stubDays{}, stubOverdue{}, stubPatients{}, clock, n)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.calls != 0 {
		t.Errorf("expected no delivery, got %d", n.calls)
	}
}

func TestService_RunWebhook(t *testing.T) {
	var got webhook.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !webhook.VerifySignature(body, "s3cret", r.Header.Get(webhook.HeaderSignature)) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender, err := webhook.NewSender(srv.URL, "s3cret", webhook.WithRetries(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := NewService(sampleDays(), stubOverdue{}, samplePatients(), clock, sender)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != EventType {
		t.Fatalf("expected %s event, got %q", EventType, got.Type)
	}
	var dg Digest
	if err := json.Unmarshal(got.Payload, &dg); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(dg.Birthdays) != 1 || len(dg.Sessions) != 2 {
		t.Errorf("unexpected delivered digest %+v", dg)
	}
}

func TestValidateSchedule(t *testing.T) {
	if err := ValidateSchedule(DefaultSchedule); err != nil {
		t.Errorf("expected default schedule to be valid, got %v", err)
	}
	for _, spec := range []string{"", "every day", "0 8 * *", "61 8 * * *"} {
		if err := ValidateSchedule(spec); err == nil {
			t.Errorf("%q: expected error", spec)
		}
	}
}
