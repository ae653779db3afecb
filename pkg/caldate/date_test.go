package caldate

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year != 2025 || d.Month != time.March || d.Day != 3 {
		t.Errorf("unexpected date: %+v", d)
	}
	if d.String() != "2025-03-03" {
		t.Errorf("expected 2025-03-03, got %s", d.String())
	}
}

func TestParseDate_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"2025-3-3",
		"03/03/2025",
		"2025-02-30",
		"2025-13-01",
		"2025-00-10",
		"abcd-ef-gh",
		"2025-03-03T10:00:00Z",
	}
	for _, in := range inputs {
		_, err := ParseDate(in)
		if err == nil {
			t.Errorf("expected error for %q", in)
			continue
		}
		if !errors.Is(err, ErrMalformedDate) {
			t.Errorf("expected ErrMalformedDate for %q, got %v", in, err)
		}
		var mde *MalformedDateError
		if !errors.As(err, &mde) || mde.Input != in {
			t.Errorf("expected MalformedDateError carrying input %q, got %v", in, err)
		}
	}
}

func TestParseDate_LeapDay(t *testing.T) {
	if _, err := ParseDate("2024-02-29"); err != nil {
		t.Errorf("2024-02-29 should be valid: %v", err)
	}
	if _, err := ParseDate("2025-02-29"); err == nil {
		t.Error("2025-02-29 should be rejected")
	}
}

func TestParseLooseDate(t *testing.T) {
	cases := map[string]string{
		"2025-06-05":   "2025-06-05",
		"05/06/2025":   "2025-06-05",
		"5/6/2025":     "2025-06-05",
		" 31/12/2024 ": "2024-12-31",
	}
	for in, want := range cases {
		d, err := ParseLooseDate(in)
		if err != nil {
			t.Errorf("ParseLooseDate(%q) error: %v", in, err)
			continue
		}
		if d.String() != want {
			t.Errorf("ParseLooseDate(%q) = %s, want %s", in, d, want)
		}
	}

	for _, bad := range []string{"31/02/2025", "2025/06/05", "05-06-2025", "1/1/25"} {
		if _, err := ParseLooseDate(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestDate_Weekday(t *testing.T) {
	// 2025-03-02 is a Sunday, 2025-03-03 a Monday.
	if w := MustParseDate("2025-03-02").Weekday(); w != 0 {
		t.Errorf("expected Sunday (0), got %d", w)
	}
	if w := MustParseDate("2025-03-03").Weekday(); w != 1 {
		t.Errorf("expected Monday (1), got %d", w)
	}
	if w := MustParseDate("2025-03-08").Weekday(); w != 6 {
		t.Errorf("expected Saturday (6), got %d", w)
	}
}

func TestDate_AddDays(t *testing.T) {
	d := MustParseDate("2024-02-28")
	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Errorf("expected 2024-02-29, got %s", got)
	}
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("expected 2024-03-01, got %s", got)
	}
	if got := MustParseDate("2025-01-01").AddDays(-1).String(); got != "2024-12-31" {
		t.Errorf("expected 2024-12-31, got %s", got)
	}
}

func TestDate_AddDays_IgnoresLocalZone(t *testing.T) {
	orig := time.Local
	defer func() { time.Local = orig }()

	// A zone with a DST transition on 2025-03-09 must not skip or repeat a day.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	time.Local = loc

	d := MustParseDate("2025-03-08")
	for i := 0; i < 3; i++ {
		next := d.AddDays(1)
		if d.DaysUntil(next) != 1 {
			t.Fatalf("expected consecutive days, got %s -> %s", d, next)
		}
		d = next
	}
	if d.String() != "2025-03-11" {
		t.Errorf("expected 2025-03-11, got %s", d)
	}
}

func TestDate_DaysUntilLongSpans(t *testing.T) {
	tests := []struct {
		from, to string
		want     int
	}{
		{"1900-01-01", "2299-12-31", 146096},
		{"0001-01-01", "9999-12-31", 3652058},
		{"2299-12-31", "1900-01-01", -146096},
	}
	for _, tt := range tests {
		if got := MustParseDate(tt.from).DaysUntil(MustParseDate(tt.to)); got != tt.want {
			t.Errorf("%s -> %s: expected %d, got %d", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestDate_Compare(t *testing.T) {
	a := MustParseDate("2025-03-03")
	b := MustParseDate("2025-03-10")
	if !a.Before(b) || b.Before(a) {
		t.Error("expected a before b")
	}
	if !b.After(a) {
		t.Error("expected b after a")
	}
	if a.Compare(a) != 0 {
		t.Error("expected a == a")
	}
	if MustParseDate("2024-12-31").Compare(MustParseDate("2025-01-01")) != -1 {
		t.Error("year boundary compare failed")
	}
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}
	b, err := json.Marshal(wrapper{D: MustParseDate("2025-06-05")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2025-06-05"}` {
		t.Errorf("unexpected JSON: %s", b)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"d":"2025-06-31"}`), &w); err == nil {
		t.Error("expected error for impossible date")
	} else if !errors.Is(err, ErrMalformedDate) {
		t.Errorf("expected ErrMalformedDate, got %v", err)
	}
}

func TestDaysInAndFirstWeekday(t *testing.T) {
	if DaysIn(2024, time.February) != 29 {
		t.Error("expected 29 days in Feb 2024")
	}
	if DaysIn(2025, time.February) != 28 {
		t.Error("expected 28 days in Feb 2025")
	}
	if DaysIn(2025, time.June) != 30 {
		t.Error("expected 30 days in June")
	}
	// 2025-06-01 is a Sunday.
	if FirstWeekday(2025, time.June) != 0 {
		t.Errorf("expected 0, got %d", FirstWeekday(2025, time.June))
	}
}

func TestToday(t *testing.T) {
	loc := time.FixedZone("ART", -3*3600)
	c := FixedClock{T: time.Date(2025, 6, 5, 23, 30, 0, 0, loc)}
	if got := Today(c).String(); got != "2025-06-05" {
		t.Errorf("expected 2025-06-05 in the clock's zone, got %s", got)
	}
}
