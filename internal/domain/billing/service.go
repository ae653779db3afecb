package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/domain/scheduling"
	"github.com/agenda/agenda/internal/platform/cache"
	"github.com/agenda/agenda/internal/platform/db"
	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/pkg/caldate"
)

// DefaultHistoryMonths is how many months the dashboard chart shows.
const DefaultHistoryMonths = 6

var ErrInvalidCategory = errors.New("invalid expense category")

type AppointmentSource interface {
	ListAppointments(ctx context.Context, f scheduling.Filter) ([]*scheduling.Appointment, error)
}

type Service struct {
	expenses docstore.Repository[Expense]
	appts    AppointmentSource
	cache    cache.Cache
	ttl      time.Duration
}

// NewService wires billing. A nil cache disables summary caching.
func NewService(expenses docstore.Repository[Expense], appts AppointmentSource, c cache.Cache, ttl time.Duration) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{expenses: expenses, appts: appts, cache: c, ttl: ttl}
}

func validateExpense(e *Expense) error {
	if e.Category == "" {
		e.Category = CategoryOther
	}
	if !validCategories[e.Category] {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if e.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// -- Expenses --

func (s *Service) CreateExpense(ctx context.Context, e *Expense) error {
	if err := validateExpense(e); err != nil {
		return err
	}
	if err := s.expenses.Create(ctx, e); err != nil {
		return err
	}
	s.InvalidateMonths(ctx, caldate.MonthOf(e.Date))
	return nil
}

func (s *Service) GetExpense(ctx context.Context, id string) (*Expense, error) {
	return s.expenses.Get(ctx, id)
}

func (s *Service) UpdateExpense(ctx context.Context, e *Expense) error {
	if err := validateExpense(e); err != nil {
		return err
	}
	prev, err := s.expenses.Get(ctx, e.ID)
	if err != nil {
		return err
	}
	patch := map[string]any{
		"date":        e.Date,
		"category":    e.Category,
		"description": e.Description,
		"amount":      e.Amount,
	}
	if err := s.expenses.Update(ctx, e.ID, patch); err != nil {
		return err
	}
	stored, err := s.expenses.Get(ctx, e.ID)
	if err != nil {
		return err
	}
	*e = *stored
	s.InvalidateMonths(ctx, caldate.MonthOf(prev.Date), caldate.MonthOf(e.Date))
	return nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	prev, err := s.expenses.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.expenses.Delete(ctx, id); err != nil {
		return err
	}
	s.InvalidateMonths(ctx, caldate.MonthOf(prev.Date))
	return nil
}

// ListExpenses returns expenses newest first.
func (s *Service) ListExpenses(ctx context.Context) ([]*Expense, error) {
	items, err := s.expenses.List(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)
	return items, nil
}

func (s *Service) ListByMonth(ctx context.Context, m caldate.Month) ([]*Expense, error) {
	items, err := s.ListExpenses(ctx)
	if err != nil {
		return nil, err
	}
	kept := items[:0]
	for _, e := range items {
		if m.Contains(e.Date) {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

func (s *Service) ListByCategory(ctx context.Context, category string, m caldate.Month) ([]*Expense, error) {
	items, err := s.ListByMonth(ctx, m)
	if err != nil {
		return nil, err
	}
	kept := items[:0]
	for _, e := range items {
		if e.Category == category {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

func (s *Service) TotalByMonth(ctx context.Context, m caldate.Month) (float64, error) {
	items, err := s.ListByMonth(ctx, m)
	if err != nil {
		return 0, err
	}
	return sumExpenses(items), nil
}

func sortNewestFirst(items []*Expense) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
}

func sumExpenses(items []*Expense) float64 {
	var total float64
	for _, e := range items {
		total += e.Amount
	}
	return total
}

// -- Summaries --

func totalsKey(ctx context.Context, m caldate.Month) string {
	tenant := db.TenantFromContext(ctx)
	if tenant == "" {
		tenant = "default"
	}
	return fmt.Sprintf("agenda:%s:totals:%s", tenant, m)
}

// InvalidateMonths drops the cached totals of the given months. Cache errors
// are logged; the next read recomputes.
func (s *Service) InvalidateMonths(ctx context.Context, months ...caldate.Month) {
	keys := make([]string, 0, len(months))
	for _, m := range months {
		keys = append(keys, totalsKey(ctx, m))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Strs("keys", keys).Msg("summary cache invalidation failed")
	}
}

// MonthTotals computes (or loads from cache) the figures of one month.
func (s *Service) MonthTotals(ctx context.Context, m caldate.Month) (Totals, error) {
	key := totalsKey(ctx, m)
	var t Totals
	found, err := s.cache.Get(ctx, key, &t)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("summary cache read failed")
	}
	if found {
		return t, nil
	}

	appts, err := s.appts.ListAppointments(ctx, scheduling.Filter{Month: &m})
	if err != nil {
		return Totals{}, err
	}
	expenses, err := s.ListByMonth(ctx, m)
	if err != nil {
		return Totals{}, err
	}
	t = computeTotals(m, appts, expenses)

	if err := s.cache.Set(ctx, key, t, s.ttl); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("summary cache write failed")
	}
	return t, nil
}

func computeTotals(m caldate.Month, appts []*scheduling.Appointment, expenses []*Expense) Totals {
	t := Totals{Month: m}
	for _, a := range appts {
		t.Income += a.Amount
		if a.Paid {
			t.Paid += a.Amount
		}
	}
	t.Pending = t.Income - t.Paid
	t.Expenses = sumExpenses(expenses)
	t.Balance = t.Paid - t.Expenses
	return t
}

func (s *Service) MonthlySummary(ctx context.Context, m caldate.Month) (*Summary, error) {
	cur, err := s.MonthTotals(ctx, m)
	if err != nil {
		return nil, err
	}
	prev, err := s.MonthTotals(ctx, m.Prev())
	if err != nil {
		return nil, err
	}
	return &Summary{Totals: cur, Previous: prev, BalanceDelta: cur.Balance - prev.Balance}, nil
}

// History returns n months ending at m, oldest first.
func (s *Service) History(ctx context.Context, m caldate.Month, n int) ([]Totals, error) {
	if n <= 0 {
		n = DefaultHistoryMonths
	}
	out := make([]Totals, 0, n)
	for i := n - 1; i >= 0; i-- {
		t, err := s.MonthTotals(ctx, m.Add(-i))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// -- Payments --

// Payments returns the appointments matching f in chronological order.
func (s *Service) Payments(ctx context.Context, f PaymentFilter) ([]*scheduling.Appointment, error) {
	switch f.Status {
	case "", StatusAll, StatusPaid, StatusPending, StatusPrivatePay:
	default:
		return nil, fmt.Errorf("invalid payment status %q", f.Status)
	}
	items, err := s.appts.ListAppointments(ctx, scheduling.Filter{PatientID: f.PatientID})
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	kept := items[:0]
	for _, a := range items {
		if f.Month != "" && !strings.HasPrefix(a.Date.String(), f.Month) {
			continue
		}
		switch f.Status {
		case StatusPaid:
			if !a.Paid {
				continue
			}
		case StatusPending:
			if a.Paid {
				continue
			}
		case StatusPrivatePay:
			if !strings.Contains(strings.ToLower(a.Insurance), "part") {
				continue
			}
		}
		if f.PaymentMethod != "" && f.PaymentMethod != StatusAll && a.PaymentMethod != f.PaymentMethod {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.PatientName), search) {
			continue
		}
		kept = append(kept, a)
	}
	return kept, nil
}

func (s *Service) PaymentStats(ctx context.Context, f PaymentFilter) (PaymentStats, error) {
	items, err := s.Payments(ctx, f)
	if err != nil {
		return PaymentStats{}, err
	}
	return computeStats(items), nil
}

func computeStats(items []*scheduling.Appointment) PaymentStats {
	var st PaymentStats
	for _, a := range items {
		st.Count++
		st.Total += a.Amount
		if !a.Paid {
			st.Pending += a.Amount
			continue
		}
		st.Paid += a.Amount
		switch a.PaymentMethod {
		case scheduling.PaymentCash:
			st.Cash += a.Amount
		case scheduling.PaymentTransfer:
			st.Transfer += a.Amount
		}
	}
	return st
}
