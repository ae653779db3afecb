package patients

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/agenda/agenda/internal/platform/auth"
	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients", auth.RequireRole(auth.RoleTherapist, auth.RoleAssistant))
	g.GET("", h.ListPatients)
	g.POST("", h.CreatePatient)
	g.GET("/:id", h.GetPatient)
	g.PUT("/:id", h.UpdatePatient)
	g.GET("/:id/appointments", h.ListAppointments)

	// Attendance sheets and deletion stay with the therapist.
	t := api.Group("/patients", auth.RequireRole(auth.RoleTherapist))
	t.DELETE("/:id", h.DeletePatient)
	t.PUT("/:id/annual-calendar/:year", h.SaveAnnualCalendar)
}

func httpError(err error, fallback int) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return echo.NewHTTPError(fallback, err.Error())
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&p); err != nil {
		return err
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	items, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&p); err != nil {
		return err
	}
	p.ID = c.Param("id")
	if err := h.svc.UpdatePatient(c.Request().Context(), &p); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if err := h.svc.DeletePatient(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	items, err := h.svc.ListAppointments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) SaveAnnualCalendar(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "year must be a number")
	}
	var months map[int][]AttendanceSlot
	if err := json.NewDecoder(c.Request().Body).Decode(&months); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.SaveAnnualCalendar(c.Request().Context(), c.Param("id"), year, months)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, p)
}
