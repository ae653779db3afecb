package scheduling

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/pkg/caldate"
)

var seriesInstances = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "agenda_series_instances_total",
	Help: "Appointment instances written for recurring series, by result.",
}, []string{"result"})

const DefaultWriteConcurrency = 8

// BulkFailure records one instance that could not be persisted.
type BulkFailure struct {
	Index int          `json:"index"`
	Date  caldate.Date `json:"date"`
	Error string       `json:"error"`
}

// BulkReport summarises a series write. Created holds ids in series order.
type BulkReport struct {
	SeriesID  string        `json:"seriesId"`
	Atomic    bool          `json:"atomic"`
	Requested int           `json:"requested"`
	Created   []string      `json:"created"`
	Failed    []BulkFailure `json:"failed,omitempty"`
}

func (r BulkReport) Complete() bool { return len(r.Failed) == 0 && len(r.Created) == r.Requested }

// BulkWriter persists expanded series instances.
type BulkWriter struct {
	repo        docstore.Repository[Appointment]
	concurrency int
}

func NewBulkWriter(repo docstore.Repository[Appointment], concurrency int) *BulkWriter {
	if concurrency <= 0 {
		concurrency = DefaultWriteConcurrency
	}
	return &BulkWriter{repo: repo, concurrency: concurrency}
}

// BestEffort issues one independent create per instance, at most
// w.concurrency at a time. Failures do not stop or undo other writes, so
// k successes leave exactly k records.
func (w *BulkWriter) BestEffort(ctx context.Context, appts []*Appointment) BulkReport {
	report := BulkReport{Requested: len(appts)}
	ids := make([]string, len(appts))
	errs := make([]error, len(appts))

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i, a := range appts {
		g.Go(func() error {
			if err := w.repo.Create(ctx, a); err != nil {
				errs[i] = err
				return nil
			}
			ids[i] = a.ID
			return nil
		})
	}
	_ = g.Wait()

	for i := range appts {
		if errs[i] != nil {
			report.Failed = append(report.Failed, BulkFailure{Index: i, Date: appts[i].Date, Error: errs[i].Error()})
			continue
		}
		report.Created = append(report.Created, ids[i])
	}
	seriesInstances.WithLabelValues("created").Add(float64(len(report.Created)))
	seriesInstances.WithLabelValues("failed").Add(float64(len(report.Failed)))

	if len(report.Failed) > 0 {
		zerolog.Ctx(ctx).Warn().
			Int("requested", report.Requested).
			Int("created", len(report.Created)).
			Int("failed", len(report.Failed)).
			Msg("series partially persisted")
	}
	return report
}

// Atomic writes the whole series in one batch: all instances or none.
func (w *BulkWriter) Atomic(ctx context.Context, appts []*Appointment) (BulkReport, error) {
	report := BulkReport{Requested: len(appts), Atomic: true}
	if len(appts) == 0 {
		return report, nil
	}
	if err := w.repo.CreateMany(ctx, appts); err != nil {
		seriesInstances.WithLabelValues("failed").Add(float64(len(appts)))
		return report, err
	}
	for _, a := range appts {
		report.Created = append(report.Created, a.ID)
	}
	seriesInstances.WithLabelValues("created").Add(float64(len(appts)))
	return report, nil
}

// DeleteReport summarises a series delete, which removes instances one at a
// time with no atomicity.
type DeleteReport struct {
	SeriesID  string        `json:"seriesId"`
	Requested int           `json:"requested"`
	Deleted   int           `json:"deleted"`
	Failed    []BulkFailure `json:"failed,omitempty"`
}
