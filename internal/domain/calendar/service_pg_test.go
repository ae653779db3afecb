package calendar

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/agenda/agenda/internal/domain/patients"
	"github.com/agenda/agenda/internal/domain/scheduling"
	"github.com/agenda/agenda/internal/domain/tasks"
	"github.com/agenda/agenda/internal/platform/db"
	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/migrations"
)

// Runs against a real database when AGENDA_TEST_DATABASE_URL is set. The
// request context carries one pinned connection, as TenantMiddleware leaves
// it, while series writes and month loads fan out over it.
func TestPostgres_SeriesAndMonthViewOnPinnedConnection(t *testing.T) {
	url := os.Getenv("AGENDA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AGENDA_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: url, MaxConns: 4})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	tenant := "calendar_pg_test"
	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+db.SchemaName(tenant)+" CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if err := db.CreateTenantSchema(ctx, pool, tenant, migrations.FS); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	ctx, release, err := db.AcquireTenant(ctx, pool, tenant)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	store := docstore.NewPGStore(pool)
	appts := scheduling.NewService(docstore.NewCollection[scheduling.Appointment](store, scheduling.Collection), clock, 8)
	ps := patients.NewService(docstore.NewCollection[patients.Patient](store, patients.Collection), appts)
	ts := tasks.NewService(docstore.NewCollection[tasks.Task](store, tasks.Collection), clock)
	svc := NewService(appts, ps, ts, clock, time.UTC, 0)

	ana := &patients.Patient{Name: "Ana", BirthDate: d("1990-06-05")}
	if err := ps.CreatePatient(ctx, ana); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	task := &tasks.Task{Title: "informe", Category: tasks.CategoryReport, Priority: tasks.PriorityHigh,
		DueDate: tasks.DueDate{Date: d("2025-06-10")}}
	if err := ts.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	// Every weekday of June 2025: 21 sessions written concurrently.
	report, err := appts.CreateSeries(ctx, scheduling.RecurrenceRequest{
		PatientID: ana.ID, PatientName: "Ana", Amount: 100,
		WeekDays:  []int{1, 2, 3, 4, 5},
		StartDate: d("2025-06-01"), EndDate: d("2025-06-30"),
	}, false)
	if err != nil {
		t.Fatalf("create series: %v", err)
	}
	if !report.Complete() || len(report.Created) != 21 {
		t.Fatalf("expected 21 sessions stored, got %d created and %d failed", len(report.Created), len(report.Failed))
	}

	mv, err := svc.MonthView(ctx, june2025)
	if err != nil {
		t.Fatalf("month view: %v", err)
	}
	var sessions int
	for _, bucket := range mv.Appointments {
		sessions += len(bucket)
	}
	if sessions != 21 {
		t.Errorf("expected 21 sessions in the month, got %d", sessions)
	}
	if len(mv.Birthdays[5]) != 1 || len(mv.Tasks[10]) != 1 {
		t.Errorf("expected birthday on the 5th and task on the 10th, got %v / %v", mv.Birthdays, mv.Tasks)
	}

	if _, err := svc.DayView(ctx, d("2025-06-05")); err != nil {
		t.Errorf("day view: %v", err)
	}
}
