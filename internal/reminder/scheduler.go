package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/platform/db"
)

// DefaultSchedule runs the digest every day at 08:00.
const DefaultSchedule = "0 8 * * *"

// ValidateSchedule checks a standard five-field cron expression.
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	return nil
}

// TenantScope prepares a job context for one tenant. db.AcquireTenant
// bound to a pool is the usual implementation.
type TenantScope func(ctx context.Context, tenantID string) (context.Context, func(), error)

// Scheduler runs the digest for each configured tenant on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	svc     *Service
	tenants []string
	scope   TenantScope
	logger  zerolog.Logger
	timeout time.Duration
}

// NewScheduler registers the digest job. A nil scope only tags the context
// with the tenant id.
func NewScheduler(spec string, loc *time.Location, svc *Service, tenants []string, scope TenantScope, logger zerolog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if scope == nil {
		scope = func(ctx context.Context, tenantID string) (context.Context, func(), error) {
			return db.WithTenant(ctx, tenantID), func() {}, nil
		}
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		svc:     svc,
		tenants: tenants,
		scope:   scope,
		logger:  logger.With().Str("component", "reminder").Logger(),
		timeout: 2 * time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.runAll); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	return s, nil
}

// runAll is the cron job body. One failing tenant does not stop the others.
func (s *Scheduler) runAll() {
	for _, tenant := range s.tenants {
		s.runTenant(tenant)
	}
}

func (s *Scheduler) runTenant(tenant string) {
	l := s.logger.With().Str("tenant", tenant).Logger()
	ctx, cancel := context.WithTimeout(l.WithContext(context.Background()), s.timeout)
	defer cancel()

	ctx, release, err := s.scope(ctx, tenant)
	defer release()
	if err != nil {
		l.Error().Err(err).Msg("reminder tenant scope failed")
		return
	}
	if _, err := s.svc.Run(ctx); err != nil {
		l.Error().Err(err).Msg("reminder run failed")
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("tenants", len(s.tenants)).Msg("reminder scheduler started")
}

// Stop prevents new runs and waits for a running one to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
