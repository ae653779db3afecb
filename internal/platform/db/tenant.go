package db

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
	DBLockKey   contextKey = "db_conn_lock"
)

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SchemaName returns the Postgres schema holding a tenant's documents.
func SchemaName(tenantID string) string {
	return "tenant_" + tenantID
}

// TenantMiddleware resolves the tenant, pins a pooled connection to its schema
// and stores both on the request context. With a nil pool (memory store) only
// the tenant id is resolved.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := extractTenantID(c, defaultTenant)
			if !tenantIDPattern.MatchString(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx := context.WithValue(c.Request().Context(), TenantIDKey, tenantID)
			c.Set("tenant_id", tenantID)

			if pool != nil {
				conn, err := pool.Acquire(ctx)
				if err != nil {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
				}
				defer conn.Release()

				if err := pinSchema(ctx, conn, tenantID); err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed")
				}
				ctx = withConn(ctx, conn)
				c.Set("db", conn)
			}

			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func extractTenantID(c echo.Context, defaultTenant string) string {
	if tid, ok := c.Get("jwt_tenant_id").(string); ok && tid != "" {
		return tid
	}
	if tid := c.Request().Header.Get("X-Tenant-ID"); tid != "" {
		return tid
	}
	if tid := c.QueryParam("tenant_id"); tid != "" {
		return tid
	}
	return defaultTenant
}

// withConn pins conn to ctx together with the mutex that serialises its use.
// A pgx connection runs one statement at a time, so goroutines sharing a
// request's connection take turns.
func withConn(ctx context.Context, conn *pgxpool.Conn) context.Context {
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return context.WithValue(ctx, DBLockKey, &sync.Mutex{})
}

// ConnLock returns the mutex guarding the pinned connection (and any
// transaction on it), or nil when ctx carries none.
func ConnLock(ctx context.Context) *sync.Mutex {
	mu, _ := ctx.Value(DBLockKey).(*sync.Mutex)
	return mu
}

// ConnFromContext retrieves the tenant-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TenantFromContext retrieves the tenant ID from context.
func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// WithTenant is used by the CLI and background jobs, which have no request.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

func pinSchema(ctx context.Context, conn *pgxpool.Conn, tenantID string) error {
	_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", SchemaName(tenantID)))
	return err
}

// AcquireTenant does for a background job what TenantMiddleware does for a
// request. The returned release must be called when the job is done. With a
// nil pool only the tenant id is attached.
func AcquireTenant(ctx context.Context, pool *pgxpool.Pool, tenantID string) (context.Context, func(), error) {
	if !tenantIDPattern.MatchString(tenantID) {
		return ctx, func() {}, fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}
	ctx = WithTenant(ctx, tenantID)
	if pool == nil {
		return ctx, func() {}, nil
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return ctx, func() {}, fmt.Errorf("acquire connection: %w", err)
	}
	if err := pinSchema(ctx, conn, tenantID); err != nil {
		conn.Release()
		return ctx, func() {}, fmt.Errorf("set tenant schema: %w", err)
	}
	return withConn(ctx, conn), conn.Release, nil
}

// CreateTenantSchema creates a tenant's schema and applies migrations from
// files (skipped when nil).
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string, files fs.FS) error {
	if !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}
	schema := SchemaName(tenantID)

	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if files != nil {
		if _, err := NewMigrator(pool, files).Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}
	return nil
}
