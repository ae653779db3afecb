package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/config"
	"github.com/agenda/agenda/internal/platform/auth"
	"github.com/agenda/agenda/internal/platform/docstore"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:                    env,
		Store:                  config.StoreMemory,
		AuthIssuer:             "agenda",
		AuthSigningKey:         testSigningKey,
		DefaultTenant:          "default",
		CORSOrigins:            []string{"http://localhost:5173"},
		RateLimitRPS:           100,
		RateLimitBurst:         100,
		Timezone:               "UTC",
		ReminderCron:           "0 8 * * *",
		SeriesWriteConcurrency: 2,
		SeriesMaxDays:          731,
		SessionMinutes:         45,
	}
}

func newTestServer(t *testing.T, env string) *echo.Echo {
	t.Helper()
	a, err := newApp(testConfig(env), nil, docstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	reg := prometheus.NewRegistry()
	return a.newEcho(zerolog.Nop(), reg, reg)
}

func do(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	e := newTestServer(t, "development")
	rec := do(e, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"store":"memory"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestServer_PatientSeriesCalendarFlow(t *testing.T) {
	e := newTestServer(t, "development")

	rec := do(e, http.MethodPost, "/api/v1/patients",
		`{"name":"Ana Gómez","dni":"30111222","phone":"11 5555-0001","birthDate":"1990-06-05"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create patient: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &p)

	body, _ := json.Marshal(map[string]any{
		"patientId":   p.ID,
		"patientName": "Ana Gómez",
		"amount":      15000,
		"time":        "10:00",
		"weekDays":    []int{1, 3},
		"startDate":   "2025-06-02",
		"endDate":     "2025-06-15",
	})
	rec = do(e, http.MethodPost, "/api/v1/appointments/series", string(body), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create series: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/api/v1/calendar/2025-06", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("calendar: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var mv struct {
		Appointments map[string][]json.RawMessage `json:"appointments"`
		Birthdays    map[string][]json.RawMessage `json:"birthdays"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &mv); err != nil {
		t.Fatalf("decode month view: %v", err)
	}
	if len(mv.Appointments) != 4 {
		t.Errorf("expected 4 days with sessions, got %d", len(mv.Appointments))
	}
	if len(mv.Birthdays["5"]) != 1 {
		t.Errorf("expected a birthday on the 5th, got %v", mv.Birthdays)
	}

	rec = do(e, http.MethodGet, "/api/v1/billing/summary/2025-06", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"totalPending":60000`) {
		t.Errorf("expected 60000 pending, got %s", rec.Body.String())
	}
}

func TestServer_Metrics(t *testing.T) {
	e := newTestServer(t, "development")
	do(e, http.MethodGet, "/health", "", "")
	rec := do(e, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "agenda_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}

func TestServer_ProductionAuth(t *testing.T) {
	e := newTestServer(t, "production")
	jwtCfg := auth.JWTConfig{Issuer: "agenda", SigningKey: []byte(testSigningKey)}

	if rec := do(e, http.MethodGet, "/api/v1/patients", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	assistant, err := auth.IssueToken(jwtCfg, "u1", "default", []string{auth.RoleAssistant}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if rec := do(e, http.MethodGet, "/api/v1/patients", "", assistant); rec.Code != http.StatusOK {
		t.Errorf("expected assistant to list patients, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/therapy-notes", "", assistant); rec.Code != http.StatusForbidden {
		t.Errorf("expected assistant kept out of therapy notes, got %d", rec.Code)
	}

	therapist, _ := auth.IssueToken(jwtCfg, "u2", "default", []string{auth.RoleTherapist}, time.Hour)
	if rec := do(e, http.MethodGet, "/api/v1/therapy-notes", "", therapist); rec.Code != http.StatusOK {
		t.Errorf("expected therapist to read notes, got %d", rec.Code)
	}
}

func TestServer_RateLimitRunsBeforeTenantResolution(t *testing.T) {
	cfg := testConfig("production")
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	a, err := newApp(cfg, nil, docstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	reg := prometheus.NewRegistry()
	e := a.newEcho(zerolog.Nop(), reg, reg)

	jwtCfg := auth.JWTConfig{Issuer: "agenda", SigningKey: []byte(testSigningKey)}
	token, err := auth.IssueToken(jwtCfg, "u1", "not-valid!", []string{auth.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if rec := do(e, http.MethodGet, "/api/v1/patients", "", token); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for the bad tenant, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/patients", "", token); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 once the burst is spent, got %d", rec.Code)
	}
}

func TestNewApp_InvalidWebhook(t *testing.T) {
	cfg := testConfig("development")
	cfg.WebhookURL = "ftp://example.com/hook"
	if _, err := newApp(cfg, nil, docstore.NewMemoryStore(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestSeriesPreviewCommand(t *testing.T) {
	cmd := seriesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"preview", "--weekdays", "1,3", "--start", "2025-03-03", "--end", "2025-03-16", "--amount", "50", "--list"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Sessions: 4") || !strings.Contains(got, "Total:    200.00") {
		t.Errorf("unexpected output:\n%s", got)
	}
	if !strings.Contains(got, "2025-03-12") {
		t.Errorf("expected listed dates, got:\n%s", got)
	}
}

func TestSeriesPreviewCommand_BadWeekday(t *testing.T) {
	cmd := seriesCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"preview", "--weekdays", "1,x", "--start", "2025-03-03", "--end", "2025-03-16"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseWeekDays(t *testing.T) {
	got, err := parseWeekDays(" 1, 3,,5 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 5 {
		t.Errorf("unexpected weekdays %v", got)
	}
}
