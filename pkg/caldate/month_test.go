package caldate

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Year != 2025 || m.Month != time.June {
		t.Errorf("unexpected month: %+v", m)
	}
	for _, bad := range []string{"2025-6", "2025-13", "06-2025", ""} {
		if _, err := ParseMonth(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestMonth_Navigation(t *testing.T) {
	jan := Month{Year: 2025, Month: time.January}
	if got := jan.Prev().String(); got != "2024-12" {
		t.Errorf("expected 2024-12, got %s", got)
	}
	if got := jan.Next().String(); got != "2025-02" {
		t.Errorf("expected 2025-02, got %s", got)
	}
	if got := jan.Add(-5).String(); got != "2024-08" {
		t.Errorf("expected 2024-08, got %s", got)
	}
}

func TestMonth_Contains(t *testing.T) {
	m := Month{Year: 2025, Month: time.June}
	if !m.Contains(MustParseDate("2025-06-30")) {
		t.Error("expected June 30 in June")
	}
	if m.Contains(MustParseDate("2025-07-01")) {
		t.Error("July 1 must not be in June")
	}
	if m.Contains(MustParseDate("2024-06-15")) {
		t.Error("June of another year must not match")
	}
	if m.First().String() != "2025-06-01" || m.Last().String() != "2025-06-30" {
		t.Errorf("unexpected bounds %s..%s", m.First(), m.Last())
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("08:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tod.Minutes() != 510 {
		t.Errorf("expected 510 minutes, got %d", tod.Minutes())
	}
	if tod2, err := ParseTimeOfDay("9:05"); err != nil || tod2.String() != "09:05" {
		t.Errorf("expected 09:05, got %v (%v)", tod2, err)
	}
	for _, bad := range []string{"24:00", "12:60", "1230", "", "ab:cd", "12:3"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestMonth_JSON(t *testing.T) {
	type payload struct {
		M Month `json:"month"`
	}
	out, err := json.Marshal(payload{M: Month{Year: 2025, Month: time.June}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"month":"2025-06"}` {
		t.Errorf("unexpected json %s", out)
	}
	var back payload
	if err := json.Unmarshal(out, &back); err != nil || back.M != (Month{Year: 2025, Month: time.June}) {
		t.Errorf("round trip failed: %+v %v", back, err)
	}
	if err := json.Unmarshal([]byte(`{"month":"2025-13"}`), &back); err == nil {
		t.Error("expected error for month 13")
	}
}
