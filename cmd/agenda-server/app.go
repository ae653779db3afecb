package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/config"
	"github.com/agenda/agenda/internal/domain/billing"
	"github.com/agenda/agenda/internal/domain/calendar"
	"github.com/agenda/agenda/internal/domain/clinical"
	"github.com/agenda/agenda/internal/domain/patients"
	"github.com/agenda/agenda/internal/domain/resources"
	"github.com/agenda/agenda/internal/domain/scheduling"
	"github.com/agenda/agenda/internal/domain/tasks"
	"github.com/agenda/agenda/internal/domain/tools"
	"github.com/agenda/agenda/internal/platform/auth"
	"github.com/agenda/agenda/internal/platform/cache"
	"github.com/agenda/agenda/internal/platform/db"
	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/internal/platform/live"
	"github.com/agenda/agenda/internal/platform/middleware"
	"github.com/agenda/agenda/internal/platform/validation"
	"github.com/agenda/agenda/internal/platform/webhook"
	"github.com/agenda/agenda/internal/reminder"
	"github.com/agenda/agenda/internal/seed"
	"github.com/agenda/agenda/pkg/caldate"
)

const version = "0.1.0"

// app holds the wired domain services of one process.
type app struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	store docstore.Store
	cache cache.Cache
	loc   *time.Location
	clock caldate.Clock

	appointments *scheduling.Service
	patients     *patients.Service
	tasks        *tasks.Service
	billing      *billing.Service
	calendar     *calendar.Service
	clinical     *clinical.Service
	tools        *tools.Service
	resources    *resources.Service
	reminders    *reminder.Service
	hub          *live.Hub
}

// zoneClock reads the system clock in the practice's time zone so that
// "today" follows the practice, not the host.
type zoneClock struct {
	loc *time.Location
}

func (c zoneClock) Now() time.Time { return time.Now().In(c.loc) }

func newApp(cfg *config.Config, pool *pgxpool.Pool, store docstore.Store, c cache.Cache) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = cache.Nop{}
	}
	a := &app{cfg: cfg, pool: pool, store: store, cache: c, loc: loc, clock: zoneClock{loc: loc}}

	a.appointments = scheduling.NewService(
		docstore.NewCollection[scheduling.Appointment](store, scheduling.Collection), a.clock, cfg.SeriesWriteConcurrency)
	a.appointments.SetMaxSpanDays(cfg.SeriesMaxDays)
	a.patients = patients.NewService(docstore.NewCollection[patients.Patient](store, patients.Collection), a.appointments)
	a.tasks = tasks.NewService(docstore.NewCollection[tasks.Task](store, tasks.Collection), a.clock)
	a.billing = billing.NewService(
		docstore.NewCollection[billing.Expense](store, billing.Collection), a.appointments, c, cfg.SummaryCacheTTL)
	a.hub = live.NewHub()
	a.appointments.SetInvalidator(scheduling.Invalidators{a.billing, a.hub})
	a.calendar = calendar.NewService(a.appointments, a.patients, a.tasks, a.clock, loc, cfg.SessionDuration())
	a.clinical = clinical.NewService(
		docstore.NewCollection[clinical.History](store, clinical.HistoryCollection),
		docstore.NewCollection[clinical.Note](store, clinical.NoteCollection), a.clock)
	a.tools = tools.NewService(
		docstore.NewCollection[tools.Tool](store, tools.ToolCollection),
		docstore.NewCollection[tools.Session](store, tools.SessionCollection), a.clock)
	a.resources = resources.NewService(
		docstore.NewCollection[resources.Folder](store, resources.FolderCollection),
		docstore.NewCollection[resources.Document](store, resources.DocumentCollection), a.clock)

	var notifier reminder.Notifier
	if cfg.WebhookURL != "" {
		sender, err := webhook.NewSender(cfg.WebhookURL, cfg.WebhookSecret)
		if err != nil {
			return nil, fmt.Errorf("WEBHOOK_URL: %w", err)
		}
		notifier = sender
	}
	a.reminders = reminder.NewService(a.calendar, a.tasks, a.patients, a.clock, notifier)
	return a, nil
}

func (a *app) seedServices() seed.Services {
	return seed.Services{Patients: a.patients, Expenses: a.billing, Tasks: a.tasks, Appointments: a.appointments}
}

// tenantScope pins background jobs to a tenant the way requests are pinned.
func (a *app) tenantScope(ctx context.Context, tenantID string) (context.Context, func(), error) {
	return db.AcquireTenant(ctx, a.pool, tenantID)
}

// newEcho builds the HTTP server with the full middleware chain and every
// route registered.
func (a *app) newEcho(logger zerolog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) *echo.Echo {
	cfg := a.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.NewHTTPMetrics(reg).Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"store":   cfg.Store,
		})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	jwtCfg := auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: []byte(cfg.AuthSigningKey)}
	api := e.Group("/api/v1")
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware(jwtCfg, cfg.DefaultTenant))
	} else {
		api.Use(auth.JWTMiddleware(jwtCfg))
	}
	// Throttled requests are turned away before a pooled connection is pinned.
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	api.Use(db.TenantMiddleware(a.pool, cfg.DefaultTenant))
	api.Use(middleware.Audit(logger))
	api.Use(middleware.RequestTimeout(30 * time.Second))

	scheduling.NewHandler(a.appointments).RegisterRoutes(api)
	patients.NewHandler(a.patients).RegisterRoutes(api)
	calendar.NewHandler(a.calendar).RegisterRoutes(api)
	billing.NewHandler(a.billing).RegisterRoutes(api)
	clinical.NewHandler(a.clinical).RegisterRoutes(api)
	tasks.NewHandler(a.tasks).RegisterRoutes(api)
	tools.NewHandler(a.tools).RegisterRoutes(api)
	resources.NewHandler(a.resources).RegisterRoutes(api)
	live.NewHandler(a.hub, cfg.CORSOrigins).RegisterRoutes(api)

	return e
}
