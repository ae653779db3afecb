package tasks

import (
	"errors"
	"net/http"

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
	g := api.Group("/pendientes", auth.RequireRole(auth.RoleTherapist, auth.RoleAssistant))
	g.GET("", h.ListTasks)
	g.POST("", h.CreateTask)
	g.GET("/:id", h.GetTask)
	g.PUT("/:id", h.UpdateTask)
	g.DELETE("/:id", h.DeleteTask)
	g.PATCH("/:id/complete", h.ToggleComplete)
}

func httpError(err error, fallback int) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	return echo.NewHTTPError(fallback, err.Error())
}

func (h *Handler) CreateTask(c echo.Context) error {
	var t Task
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&t); err != nil {
		return err
	}
	if err := h.svc.CreateTask(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTask(c echo.Context) error {
	t, err := h.svc.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTasks(c echo.Context) error {
	items, err := h.svc.ListTasks(c.Request().Context(), Filter{
		Category: c.QueryParam("category"),
		Priority: c.QueryParam("priority"),
		Status:   c.QueryParam("status"),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) UpdateTask(c echo.Context) error {
	var t Task
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&t); err != nil {
		return err
	}
	t.ID = c.Param("id")
	if err := h.svc.UpdateTask(c.Request().Context(), &t); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTask(c echo.Context) error {
	if err := h.svc.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

type completeRequest struct {
	Completed bool `json:"completed"`
}

func (h *Handler) ToggleComplete(c echo.Context) error {
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.ToggleComplete(c.Request().Context(), c.Param("id"), req.Completed)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, t)
}
