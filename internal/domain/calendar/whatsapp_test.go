package calendar

import (
	"strings"
	"testing"
)

func TestWhatsAppLink(t *testing.T) {
	tests := []struct {
		phone string
		want  string
	}{
		{"11 5555-1234", "https://wa.me/541155551234?text=hola%20que%20tal"},
		{"+54 9 11 5555 1234", "https://wa.me/5491155551234?text=hola%20que%20tal"},
		{"(0351) 444-000", "https://wa.me/540351444000?text=hola%20que%20tal"},
		{"", ""},
		{"sin telefono", ""},
	}
	for _, tt := range tests {
		if got := WhatsAppLink(tt.phone, "hola que tal"); got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.phone, tt.want, got)
		}
	}
}

func TestWhatsAppLink_EscapesMessage(t *testing.T) {
	link := WhatsAppLink("1155551234", BirthdayMessage("Ana"))
	text := link[strings.Index(link, "?text=")+len("?text="):]
	if strings.ContainsAny(text, " +\n") {
		t.Errorf("expected fully escaped text, got %q", text)
	}
	if !strings.Contains(text, "Ana") {
		t.Errorf("expected name in message, got %q", text)
	}
}

func TestAppointmentReminderMessage(t *testing.T) {
	msg := AppointmentReminderMessage("Ana", d("2025-06-05"), tod("09:15"))
	if !strings.Contains(msg, "jueves, 5 de junio de 2025") {
		t.Errorf("expected long date, got %q", msg)
	}
	if !strings.Contains(msg, "09:15") {
		t.Errorf("expected time, got %q", msg)
	}
}
