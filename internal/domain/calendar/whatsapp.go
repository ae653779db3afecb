package calendar

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/agenda/agenda/pkg/caldate"
)

// CountryCode is prefixed to local phone numbers.
const CountryCode = "54"

// WhatsAppLink builds a wa.me click-to-chat link with a prefilled message.
// Numbers without digits produce no link.
func WhatsAppLink(phone, message string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return ""
	}
	if !strings.HasPrefix(digits, CountryCode) {
		digits = CountryCode + digits
	}
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return "https://wa.me/" + digits + "?text=" + text
}

func BirthdayMessage(name string) string {
	return fmt.Sprintf("¡Feliz cumpleaños %s! 🎉🎂\n\n"+
		"Te deseamos un día maravilloso lleno de alegría y felicidad.\n\n"+
		"¡Que cumplas muchos más! 🎈\n\nSaludos cariñosos 💙", name)
}

var weekdayNames = [7]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

var monthNames = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// LongDate renders a date the way es-AR spells it: "jueves, 5 de junio de 2025".
func LongDate(d caldate.Date) string {
	return fmt.Sprintf("%s, %d de %s de %d", weekdayNames[d.Weekday()], d.Day, monthNames[d.Month-1], d.Year)
}

func AppointmentReminderMessage(name string, d caldate.Date, t caldate.TimeOfDay) string {
	return fmt.Sprintf("Hola %s! \n\nTe recuerdo tu turno de Psicología:\n\n"+
		"📅 Fecha: %s\n🕐 Hora: %s\n\n¡Te espero!\n\nSaludos", name, LongDate(d), t)
}
