package calendar

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/agenda/agenda/internal/platform/auth"
	"github.com/agenda/agenda/pkg/caldate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/calendar", auth.RequireRole(auth.RoleTherapist, auth.RoleAssistant))
	g.GET("", h.GetCurrentMonth)
	g.GET("/:month", h.GetMonth)
	g.GET("/:month/days/:day", h.GetDay)
	g.GET("/:month/ics", h.ExportICS)
}

func monthParam(c echo.Context) (caldate.Month, error) {
	m, err := caldate.ParseMonth(c.Param("month"))
	if err != nil {
		return caldate.Month{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return m, nil
}

func (h *Handler) GetCurrentMonth(c echo.Context) error {
	mv, err := h.svc.MonthView(c.Request().Context(), h.svc.CurrentMonth())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, mv)
}

func (h *Handler) GetMonth(c echo.Context) error {
	m, err := monthParam(c)
	if err != nil {
		return err
	}
	mv, err := h.svc.MonthView(c.Request().Context(), m)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, mv)
}

func (h *Handler) GetDay(c echo.Context) error {
	m, err := monthParam(c)
	if err != nil {
		return err
	}
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil || day < 1 || day > m.Days() {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("day must be between 1 and %d", m.Days()))
	}
	dv, err := h.svc.DayView(c.Request().Context(), caldate.NewDate(m.Year, m.Month, day))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, dv)
}

func (h *Handler) ExportICS(c echo.Context) error {
	m, err := monthParam(c)
	if err != nil {
		return err
	}
	body, err := h.svc.ICS(c.Request().Context(), m)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=agenda-%s.ics", m))
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}
