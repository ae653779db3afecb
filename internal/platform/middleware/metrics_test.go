package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetrics_CountsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/appointments/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return c.NoContent(http.StatusOK)
	})

	for _, id := range []string{"a", "b", "missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments/"+id, nil))
	}

	ok := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/v1/appointments/:id", "200"))
	if ok != 2 {
		t.Errorf("expected 2 successful requests, got %v", ok)
	}
	notFound := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/v1/appointments/:id", "404"))
	if notFound != 1 {
		t.Errorf("expected 1 not found, got %v", notFound)
	}
	if n := testutil.CollectAndCount(m.latency); n != 1 {
		t.Errorf("expected 1 latency series, got %d", n)
	}
}
