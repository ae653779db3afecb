package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/pkg/caldate"
)

// MonthInvalidator is told which months' derived data (billing summaries)
// went stale after an appointment write.
type MonthInvalidator interface {
	InvalidateMonths(ctx context.Context, months ...caldate.Month)
}

// Invalidators fans one invalidation out to several consumers in order.
type Invalidators []MonthInvalidator

func (is Invalidators) InvalidateMonths(ctx context.Context, months ...caldate.Month) {
	for _, inv := range is {
		inv.InvalidateMonths(ctx, months...)
	}
}

// DefaultMaxSpanDays bounds a series to about two years.
const DefaultMaxSpanDays = 731

// ErrSpanTooLong rejects series whose date range exceeds the configured span.
var ErrSpanTooLong = errors.New("series date range is too long")

type Service struct {
	appointments docstore.Repository[Appointment]
	bulk         *BulkWriter
	clock        caldate.Clock
	invalidator  MonthInvalidator
	maxSpanDays  int
}

func NewService(repo docstore.Repository[Appointment], clock caldate.Clock, writeConcurrency int) *Service {
	return &Service{
		appointments: repo,
		bulk:         NewBulkWriter(repo, writeConcurrency),
		clock:        clock,
		maxSpanDays:  DefaultMaxSpanDays,
	}
}

// SetMaxSpanDays changes the longest range a series may cover. Values below
// one keep the current limit.
func (s *Service) SetMaxSpanDays(days int) {
	if days > 0 {
		s.maxSpanDays = days
	}
}

// SetInvalidator registers the consumer of month invalidations.
func (s *Service) SetInvalidator(inv MonthInvalidator) {
	s.invalidator = inv
}

func (s *Service) invalidate(ctx context.Context, dates ...caldate.Date) {
	if s.invalidator == nil {
		return
	}
	seen := make(map[caldate.Month]bool)
	var months []caldate.Month
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		m := caldate.MonthOf(d)
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	if len(months) > 0 {
		s.invalidator.InvalidateMonths(ctx, months...)
	}
}

var validStatuses = map[string]bool{
	StatusNone: true, StatusAttended: true, StatusAbsent: true,
	StatusCancelled: true, StatusHoliday: true,
}

var validPaymentMethods = map[string]bool{
	"": true, PaymentCash: true, PaymentTransfer: true,
}

func validate(a *Appointment) error {
	if a.PatientID == "" {
		return fmt.Errorf("patientId is required")
	}
	if a.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if a.Amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("invalid appointment status: %s", a.Status)
	}
	if !validPaymentMethods[a.PaymentMethod] {
		return fmt.Errorf("invalid payment method: %s", a.PaymentMethod)
	}
	return nil
}

// -- Appointment --

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if err := validate(a); err != nil {
		return err
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return err
	}
	s.invalidate(ctx, a.Date)
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	return s.appointments.Get(ctx, id)
}

// UpdateAppointment replaces the editable fields of a stored appointment and
// loads the stored result back into a. The series link is never changed, and
// an unpaid appointment carries no payment method.
func (s *Service) UpdateAppointment(ctx context.Context, a *Appointment) error {
	if err := validate(a); err != nil {
		return err
	}
	prev, err := s.appointments.Get(ctx, a.ID)
	if err != nil {
		return err
	}
	method := a.PaymentMethod
	if !a.Paid {
		method = ""
	}
	patch := map[string]any{
		"patientId":     a.PatientID,
		"patientName":   a.PatientName,
		"date":          a.Date,
		"time":          a.Time,
		"amount":        a.Amount,
		"paid":          a.Paid,
		"insurance":     a.Insurance,
		"status":        a.Status,
		"paymentMethod": method,
		"notes":         a.Notes,
	}
	if err := s.appointments.Update(ctx, a.ID, patch); err != nil {
		return err
	}
	stored, err := s.appointments.Get(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *stored
	s.invalidate(ctx, prev.Date, a.Date)
	return nil
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("invalid appointment status: %s", status)
	}
	return s.patch(ctx, id, map[string]any{"status": status})
}

// SetPaid marks an appointment paid or unpaid. The payment method is kept
// unless a new one is given; unpaying clears it.
func (s *Service) SetPaid(ctx context.Context, id string, paid bool, method string) (*Appointment, error) {
	if !validPaymentMethods[method] {
		return nil, fmt.Errorf("invalid payment method: %s", method)
	}
	patch := map[string]any{"paid": paid}
	if !paid {
		patch["paymentMethod"] = ""
	} else if method != "" {
		patch["paymentMethod"] = method
	}
	return s.patch(ctx, id, patch)
}

func (s *Service) patch(ctx context.Context, id string, patch map[string]any) (*Appointment, error) {
	if err := s.appointments.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	a, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, a.Date)
	return a, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id string) error {
	a, err := s.appointments.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, a.Date)
	return nil
}

// ListAppointments returns matching appointments ordered by date, then time.
func (s *Service) ListAppointments(ctx context.Context, f Filter) ([]*Appointment, error) {
	var filters []docstore.Filter
	if f.PatientID != "" {
		filters = append(filters, docstore.Where("patientId", f.PatientID))
	}
	if f.SeriesID != "" {
		filters = append(filters, docstore.Where("seriesId", f.SeriesID))
	}
	if !f.Date.IsZero() {
		filters = append(filters, docstore.Where("date", f.Date.String()))
	}
	items, err := s.appointments.List(ctx, filters...)
	if err != nil {
		return nil, err
	}
	if f.Month != nil {
		kept := items[:0]
		for _, a := range items {
			if f.Month.Contains(a.Date) {
				kept = append(kept, a)
			}
		}
		items = kept
	}
	SortChronologically(items)
	return items, nil
}

// ListByMonth is the month feed used by the calendar and billing.
func (s *Service) ListByMonth(ctx context.Context, m caldate.Month) ([]*Appointment, error) {
	return s.ListAppointments(ctx, Filter{Month: &m})
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	return s.ListAppointments(ctx, Filter{PatientID: patientID})
}

// SortChronologically orders by date, then time of day. Ties keep input order.
func SortChronologically(items []*Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		if c := items[i].Date.Compare(items[j].Date); c != 0 {
			return c < 0
		}
		return items[i].Time.Minutes() < items[j].Time.Minutes()
	})
}

// -- Series --

// withDefaultRange fills a missing start or end with the bounds of the
// current month, as the series form does when it opens.
func (s *Service) withDefaultRange(req RecurrenceRequest) RecurrenceRequest {
	month := caldate.MonthOf(caldate.Today(s.clock))
	if req.StartDate.IsZero() {
		req.StartDate = month.First()
	}
	if req.EndDate.IsZero() {
		req.EndDate = caldate.MonthOf(req.StartDate).Last()
	}
	return req
}

func (s *Service) checkSpan(req RecurrenceRequest) error {
	if req.EndDate.Before(req.StartDate) {
		return nil
	}
	if days := req.StartDate.DaysUntil(req.EndDate) + 1; days > s.maxSpanDays {
		return fmt.Errorf("%w: %d days, at most %d", ErrSpanTooLong, days, s.maxSpanDays)
	}
	return nil
}

func (s *Service) PreviewSeries(_ context.Context, req RecurrenceRequest) (SeriesPreview, error) {
	req = s.withDefaultRange(req)
	if err := s.checkSpan(req); err != nil {
		return SeriesPreview{StartDate: req.StartDate, EndDate: req.EndDate}, err
	}
	return Preview(req)
}

// CreateSeries expands req and persists the instances. With atomic set the
// write is all-or-nothing; otherwise each instance is written independently
// and the report lists any failures.
func (s *Service) CreateSeries(ctx context.Context, req RecurrenceRequest, atomic bool) (BulkReport, error) {
	if req.PatientID == "" {
		return BulkReport{}, fmt.Errorf("patientId is required")
	}
	if req.Amount < 0 {
		return BulkReport{}, fmt.Errorf("amount must not be negative")
	}
	req = s.withDefaultRange(req)
	if err := s.checkSpan(req); err != nil {
		return BulkReport{}, err
	}
	if req.SeriesID == "" {
		req.SeriesID = uuid.New().String()
	}

	appts, err := Expand(req)
	if err != nil {
		return BulkReport{}, err
	}

	var report BulkReport
	if atomic {
		report, err = s.bulk.Atomic(ctx, appts)
	} else {
		report = s.bulk.BestEffort(ctx, appts)
	}
	report.SeriesID = req.SeriesID

	dates := make([]caldate.Date, 0, len(appts))
	for _, a := range appts {
		dates = append(dates, a.Date)
	}
	s.invalidate(ctx, dates...)

	zerolog.Ctx(ctx).Info().
		Str("series_id", req.SeriesID).
		Str("patient_id", req.PatientID).
		Int("requested", report.Requested).
		Int("created", len(report.Created)).
		Bool("atomic", atomic).
		Msg("series created")
	return report, err
}

func (s *Service) ListSeries(ctx context.Context, seriesID string) ([]*Appointment, error) {
	return s.ListAppointments(ctx, Filter{SeriesID: seriesID})
}

// DeleteSeries deletes each instance of a series one at a time. A failure
// does not stop the remaining deletes and nothing is restored.
func (s *Service) DeleteSeries(ctx context.Context, seriesID string) (DeleteReport, error) {
	report := DeleteReport{SeriesID: seriesID}
	items, err := s.ListSeries(ctx, seriesID)
	if err != nil {
		return report, err
	}
	report.Requested = len(items)

	dates := make([]caldate.Date, 0, len(items))
	for i, a := range items {
		if err := s.appointments.Delete(ctx, a.ID); err != nil {
			report.Failed = append(report.Failed, BulkFailure{Index: i, Date: a.Date, Error: err.Error()})
			continue
		}
		report.Deleted++
		dates = append(dates, a.Date)
	}
	s.invalidate(ctx, dates...)
	return report, nil
}
