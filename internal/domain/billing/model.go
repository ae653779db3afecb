package billing

import (
	"github.com/agenda/agenda/pkg/caldate"
)

// Collection is the document store collection holding expenses.
const Collection = "expenses"

const (
	CategoryRent     = "Alquiler"
	CategorySupplies = "Insumos"
	CategoryServices = "Servicios"
	CategoryOther    = "Otros"
)

var validCategories = map[string]bool{
	CategoryRent: true, CategorySupplies: true, CategoryServices: true, CategoryOther: true,
}

// Expense is an outgoing payment of the practice.
type Expense struct {
	ID          string       `json:"id"`
	Date        caldate.Date `json:"date"`
	Category    string       `json:"category"`
	Description string       `json:"description,omitempty"`
	Amount      float64      `json:"amount" validate:"gt=0"`
}

func (e *Expense) SetID(id string) { e.ID = id }

// Totals are the money figures of one month. Balance is what was actually
// collected minus expenses; pending sessions do not count.
type Totals struct {
	Month    caldate.Month `json:"month"`
	Income   float64       `json:"totalIncome"`
	Paid     float64       `json:"totalPaid"`
	Pending  float64       `json:"totalPending"`
	Expenses float64       `json:"totalExpenses"`
	Balance  float64       `json:"balance"`
}

// Summary is the dashboard card: a month and the one before it.
type Summary struct {
	Totals
	Previous     Totals  `json:"previousMonth"`
	BalanceDelta float64 `json:"balanceDelta"`
}

// Payment filter statuses.
const (
	StatusAll        = "todos"
	StatusPaid       = "pagados"
	StatusPending    = "pendientes"
	StatusPrivatePay = "particulares"
)

// PaymentFilter narrows the payments page. Empty fields match everything.
type PaymentFilter struct {
	// Month is a date prefix: "2025-06" or "2025".
	Month         string
	Status        string
	PaymentMethod string
	PatientID     string
	Search        string
}

// PaymentStats are the sums shown above the payments list.
type PaymentStats struct {
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
	Paid     float64 `json:"paid"`
	Pending  float64 `json:"pending"`
	Cash     float64 `json:"efectivo"`
	Transfer float64 `json:"transferencia"`
}
