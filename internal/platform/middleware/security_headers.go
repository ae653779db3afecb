package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets the response headers of a JSON API that serves
// clinical notes: no sniffing, no framing, no caching.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			// Calendar clients poll the ICS feed and may cache it.
			if !strings.HasSuffix(c.Request().URL.Path, "/ics") {
				h.Set("Cache-Control", "no-store")
			}
			return next(c)
		}
	}
}
