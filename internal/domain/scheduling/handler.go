package scheduling

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/agenda/agenda/internal/platform/auth"
	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/pkg/caldate"
	"github.com/agenda/agenda/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments", auth.RequireRole(auth.RoleTherapist, auth.RoleAssistant))
	g.GET("", h.ListAppointments)
	g.POST("", h.CreateAppointment)
	g.POST("/series/preview", h.PreviewSeries)
	g.POST("/series", h.CreateSeries)
	g.GET("/series/:seriesId", h.ListSeries)
	g.DELETE("/series/:seriesId", h.DeleteSeries)
	g.GET("/:id", h.GetAppointment)
	g.PUT("/:id", h.UpdateAppointment)
	g.PATCH("/:id/status", h.UpdateStatus)
	g.PATCH("/:id/paid", h.SetPaid)
	g.DELETE("/:id", h.DeleteAppointment)
}

func notFoundOr(err error, status int) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return echo.NewHTTPError(status, err.Error())
}

// -- Appointment Handlers --

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&a); err != nil {
		return err
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.svc.GetAppointment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return notFoundOr(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		PatientID: c.QueryParam("patient_id"),
		SeriesID:  c.QueryParam("series_id"),
	}
	if v := c.QueryParam("date"); v != "" {
		d, err := caldate.ParseDate(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Date = d
	}
	if v := c.QueryParam("month"); v != "" {
		m, err := caldate.ParseMonth(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Month = &m
	}
	items, err := h.svc.ListAppointments(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pg))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&a); err != nil {
		return err
	}
	a.ID = c.Param("id")
	if err := h.svc.UpdateAppointment(c.Request().Context(), &a); err != nil {
		return notFoundOr(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return notFoundOr(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, a)
}

type paidRequest struct {
	Paid          bool   `json:"paid"`
	PaymentMethod string `json:"paymentMethod"`
}

func (h *Handler) SetPaid(c echo.Context) error {
	var req paidRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.SetPaid(c.Request().Context(), c.Param("id"), req.Paid, req.PaymentMethod)
	if err != nil {
		return notFoundOr(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	if err := h.svc.DeleteAppointment(c.Request().Context(), c.Param("id")); err != nil {
		return notFoundOr(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Series Handlers --

func (h *Handler) PreviewSeries(c echo.Context) error {
	var req RecurrenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.PreviewSeries(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

// CreateSeries answers 201 when every instance was stored and 207 when only
// some were; the body always carries the report.
func (h *Handler) CreateSeries(c echo.Context) error {
	var req RecurrenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	atomic, _ := strconv.ParseBool(c.QueryParam("atomic"))

	report, err := h.svc.CreateSeries(c.Request().Context(), req, atomic)
	if err != nil {
		if report.Atomic {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !report.Complete() {
		return c.JSON(http.StatusMultiStatus, report)
	}
	return c.JSON(http.StatusCreated, report)
}

func (h *Handler) ListSeries(c echo.Context) error {
	items, err := h.svc.ListSeries(c.Request().Context(), c.Param("seriesId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(items) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "series not found")
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) DeleteSeries(c echo.Context) error {
	report, err := h.svc.DeleteSeries(c.Request().Context(), c.Param("seriesId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if report.Requested == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "series not found")
	}
	if len(report.Failed) > 0 {
		return c.JSON(http.StatusMultiStatus, report)
	}
	return c.JSON(http.StatusOK, report)
}
