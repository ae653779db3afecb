package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/platform/auth"
	"github.com/agenda/agenda/internal/platform/db"
)

const maxPanicStack = 4096

// Recovery turns a handler panic into a 500 and logs it with whoever was
// signed in and the practice they were working on.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				buf := make([]byte, maxPanicStack)
				buf = buf[:runtime.Stack(buf, false)]

				ctx := c.Request().Context()
				logger.Error().
					Str("request_id", requestID(c)).
					Str("tenant_id", db.TenantFromContext(ctx)).
					Str("user_id", auth.UserIDFromContext(ctx)).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", buf).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
