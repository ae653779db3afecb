package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// HealthReport is the body of /health/db.
type HealthReport struct {
	Status string     `json:"status"`
	Store  string     `json:"store"`
	Error  string     `json:"error,omitempty"`
	Pool   *PoolStats `json:"pool,omitempty"`
}

func checkStore(ctx context.Context, ping func(context.Context) error, stats func() *PoolStats) (int, HealthReport) {
	if ping == nil {
		return http.StatusOK, HealthReport{Status: "healthy", Store: "memory"}
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	report := HealthReport{Status: "healthy", Store: "postgres", Pool: stats()}
	if err := ping(ctx); err != nil {
		report.Status = "unhealthy"
		report.Error = err.Error()
		return http.StatusServiceUnavailable, report
	}
	return http.StatusOK, report
}

// HealthHandler reports document store health. A nil pool means the service
// runs on the in-memory store, which is always healthy.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		var (
			ping  func(context.Context) error
			stats func() *PoolStats
		)
		if pool != nil {
			ping = pool.Ping
			stats = func() *PoolStats { return GetPoolStats(pool) }
		}
		code, report := checkStore(c.Request().Context(), ping, stats)
		return c.JSON(code, report)
	}
}
