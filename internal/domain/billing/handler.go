package billing

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
	staff := api.Group("", auth.RequireRole(auth.RoleTherapist, auth.RoleAssistant))
	staff.GET("/expenses", h.ListExpenses)
	staff.POST("/expenses", h.CreateExpense)
	staff.GET("/expenses/:id", h.GetExpense)
	staff.PUT("/expenses/:id", h.UpdateExpense)
	staff.DELETE("/expenses/:id", h.DeleteExpense)
	staff.GET("/payments", h.ListPayments)

	therapist := api.Group("/billing", auth.RequireRole(auth.RoleTherapist))
	therapist.GET("/summary/:month", h.GetSummary)
	therapist.GET("/history/:month", h.GetHistory)
}

func httpError(err error, status int) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "expense not found")
	}
	return echo.NewHTTPError(status, err.Error())
}

func monthParam(c echo.Context) (caldate.Month, error) {
	m, err := caldate.ParseMonth(c.Param("month"))
	if err != nil {
		return caldate.Month{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return m, nil
}

// -- Expense Handlers --

func (h *Handler) CreateExpense(c echo.Context) error {
	var e Expense
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&e); err != nil {
		return err
	}
	if err := h.svc.CreateExpense(c.Request().Context(), &e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetExpense(c echo.Context) error {
	e, err := h.svc.GetExpense(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, e)
}

// ListExpenses accepts ?month=YYYY-MM and, with a month, ?category=.
func (h *Handler) ListExpenses(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	v := c.QueryParam("month")
	if v == "" {
		items, err := h.svc.ListExpenses(ctx)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.Respond(items, pg))
	}
	m, err := caldate.ParseMonth(v)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var items []*Expense
	if cat := c.QueryParam("category"); cat != "" {
		items, err = h.svc.ListByCategory(ctx, cat, m)
	} else {
		items, err = h.svc.ListByMonth(ctx, m)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pg))
}

func (h *Handler) UpdateExpense(c echo.Context) error {
	var e Expense
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&e); err != nil {
		return err
	}
	e.ID = c.Param("id")
	if err := h.svc.UpdateExpense(c.Request().Context(), &e); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteExpense(c echo.Context) error {
	if err := h.svc.DeleteExpense(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Summary Handlers --

func (h *Handler) GetSummary(c echo.Context) error {
	m, err := monthParam(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.MonthlySummary(c.Request().Context(), m)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) GetHistory(c echo.Context) error {
	m, err := monthParam(c)
	if err != nil {
		return err
	}
	n := DefaultHistoryMonths
	if v := c.QueryParam("months"); v != "" {
		n, err = strconv.Atoi(v)
		if err != nil || n < 1 || n > 24 {
			return echo.NewHTTPError(http.StatusBadRequest, "months must be between 1 and 24")
		}
	}
	hist, err := h.svc.History(c.Request().Context(), m, n)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, hist)
}

// -- Payment Handlers --

type paymentsResponse struct {
	Stats    PaymentStats         `json:"stats"`
	Payments *pagination.Response `json:"payments"`
}

func (h *Handler) ListPayments(c echo.Context) error {
	f := PaymentFilter{
		Month:         c.QueryParam("month"),
		Status:        c.QueryParam("status"),
		PaymentMethod: c.QueryParam("payment_method"),
		PatientID:     c.QueryParam("patient_id"),
		Search:        c.QueryParam("q"),
	}
	items, err := h.svc.Payments(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, paymentsResponse{
		Stats:    computeStats(items),
		Payments: pagination.Respond(items, pagination.FromContext(c)),
	})
}
