package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agenda/agenda/internal/config"
	"github.com/agenda/agenda/internal/domain/scheduling"
	"github.com/agenda/agenda/internal/platform/auth"
	"github.com/agenda/agenda/internal/platform/cache"
	"github.com/agenda/agenda/internal/platform/db"
	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/internal/reminder"
	"github.com/agenda/agenda/internal/seed"
	"github.com/agenda/agenda/migrations"
	"github.com/agenda/agenda/pkg/caldate"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "agenda-server",
		Short:        "Practice agenda API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(seriesCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(reminderCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadConfig loads and validates configuration for commands that touch
// storage.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
}

// openApp opens the configured store and cache and wires the services.
// The returned cleanup closes whatever was opened.
func openApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var pool *pgxpool.Pool
	var store docstore.Store
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn().Msg("using in-memory store; data is lost on exit")
		store = docstore.NewMemoryStore()
	default:
		p, err := openPool(ctx, cfg)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, p.Close)
		pool = p
		store = docstore.NewPGStore(p)
		logger.Info().Msg("connected to database")
	}

	var c cache.Cache = cache.Nop{}
	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, func() { _ = r.Close() })
		c = r
		logger.Info().Dur("ttl", cfg.SummaryCacheTTL).Msg("summary cache enabled")
	}

	a, err := newApp(cfg, pool, store, c)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return a, cleanup, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: requests without a token act as admin of the default tenant")
	}

	ctx := context.Background()
	a, cleanup, err := openApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer cleanup()

	e := a.newEcho(logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)

	sched, err := reminder.NewScheduler(cfg.ReminderCron, a.loc, a.reminders, cfg.ReminderTenants, a.tenantScope, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("reminder scheduler")
	}
	sched.Start()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.Store).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("reminder job still running at shutdown")
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(tenant)
			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("tenant", "default", "Tenant whose schema is migrated")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(tenant)
			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("tenant", "default", "Tenant whose schema is inspected")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: %s\n", db.SchemaName(name))
			if err := db.CreateTenantSchema(ctx, pool, name, migrations.FS); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func parseWeekDays(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// seriesRequestFromFlags reads the recurrence flags of series preview.
func seriesRequestFromFlags(cmd *cobra.Command) (scheduling.RecurrenceRequest, error) {
	var req scheduling.RecurrenceRequest
	days, _ := cmd.Flags().GetString("weekdays")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	at, _ := cmd.Flags().GetString("time")
	req.Amount, _ = cmd.Flags().GetFloat64("amount")

	var err error
	if req.WeekDays, err = parseWeekDays(days); err != nil {
		return req, err
	}
	if req.StartDate, err = caldate.ParseDate(start); err != nil {
		return req, err
	}
	if req.EndDate, err = caldate.ParseDate(end); err != nil {
		return req, err
	}
	if at != "" {
		if req.Time, err = caldate.ParseTimeOfDay(at); err != nil {
			return req, err
		}
	}
	return req, nil
}

func seriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Inspect weekly appointment series",
	}

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Count the sessions a weekly series would create",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := seriesRequestFromFlags(cmd)
			if err != nil {
				return err
			}
			p, err := scheduling.Preview(req)
			if err != nil {
				return err
			}
			list, _ := cmd.Flags().GetBool("list")
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sessions: %d\nTotal:    %.2f\n", p.Count, p.Total)
			if p.Rule != "" {
				fmt.Fprintf(out, "Rule:     %s\n", p.Rule)
			}
			if list {
				appts, err := scheduling.Expand(req)
				if err != nil {
					return err
				}
				for _, a := range appts {
					fmt.Fprintf(out, "  %s %s\n", a.Date, a.Time)
				}
			}
			return nil
		},
	}
	previewCmd.Flags().String("weekdays", "", "Comma separated weekdays, 0 = Sunday")
	previewCmd.Flags().String("start", "", "First date (YYYY-MM-DD)")
	previewCmd.Flags().String("end", "", "Last date (YYYY-MM-DD)")
	previewCmd.Flags().String("time", "", "Session time (HH:MM)")
	previewCmd.Flags().Float64("amount", 0, "Fee per session")
	previewCmd.Flags().Bool("list", false, "Print every session date")
	_ = previewCmd.MarkFlagRequired("weekdays")
	_ = previewCmd.MarkFlagRequired("start")
	_ = previewCmd.MarkFlagRequired("end")

	cmd.AddCommand(previewCmd)
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML fixture through the domain services",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			tenant, _ := cmd.Flags().GetString("tenant")

			f, err := seed.Load(file)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}
			logger := newLogger(cfg)
			ctx := logger.WithContext(context.Background())

			a, cleanup, err := openApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, release, err := a.tenantScope(ctx, tenant)
			defer release()
			if err != nil {
				return err
			}
			res, err := applySeed(ctx, a, f)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}
	cmd.Flags().String("file", "", "Fixture file")
	cmd.Flags().String("tenant", "", "Target tenant (defaults to DEFAULT_TENANT)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// applySeed writes the fixture in one transaction when the store is
// Postgres, so a failing fixture leaves nothing behind.
func applySeed(ctx context.Context, a *app, f *seed.Fixture) (seed.Result, error) {
	if a.pool == nil {
		return seed.Apply(ctx, f, a.seedServices())
	}
	txCtx, tx, err := db.WithTx(ctx)
	if err != nil {
		return seed.Result{}, err
	}
	res, err := seed.Apply(txCtx, f, a.seedServices())
	if err != nil {
		_ = tx.Rollback(ctx)
		return seed.Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return seed.Result{}, fmt.Errorf("commit seed: %w", err)
	}
	return res, nil
}

func reminderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminder",
		Short: "Daily digest of birthdays, overdue tasks and tomorrow's sessions",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Build and deliver today's digest once",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}
			logger := newLogger(cfg)
			ctx := logger.WithContext(context.Background())

			a, cleanup, err := openApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, release, err := a.tenantScope(ctx, tenant)
			defer release()
			if err != nil {
				return err
			}
			d, err := a.reminders.Run(ctx)
			if d != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(d)
			}
			return err
		},
	}
	runCmd.Flags().String("tenant", "", "Tenant to build the digest for (defaults to DEFAULT_TENANT)")

	cmd.AddCommand(runCmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			tenant, _ := cmd.Flags().GetString("tenant")
			roles, _ := cmd.Flags().GetStringSlice("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AuthSigningKey == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY is required to issue tokens")
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}
			token, err := auth.IssueToken(auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: []byte(cfg.AuthSigningKey)},
				subject, tenant, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issueCmd.Flags().String("subject", "", "User id")
	issueCmd.Flags().String("tenant", "", "Tenant (defaults to DEFAULT_TENANT)")
	issueCmd.Flags().StringSlice("roles", []string{auth.RoleTherapist}, "Roles: therapist, assistant, admin")
	issueCmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	_ = issueCmd.MarkFlagRequired("subject")

	cmd.AddCommand(issueCmd)
	return cmd
}
