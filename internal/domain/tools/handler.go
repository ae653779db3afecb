package tools

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
	g := api.Group("", auth.RequireRole(auth.RoleTherapist))
	g.GET("/tools", h.ListTools)
	g.POST("/tools", h.CreateTool)
	g.GET("/tools/:id", h.GetTool)
	g.PUT("/tools/:id", h.UpdateTool)
	g.DELETE("/tools/:id", h.DeleteTool)

	g.GET("/tool-sessions", h.ListSessions)
	g.POST("/tool-sessions", h.CreateSession)
	g.GET("/tool-sessions/stats", h.GetStats)
	g.GET("/tool-sessions/:id", h.GetSession)
	g.PUT("/tool-sessions/:id", h.UpdateSession)
	g.DELETE("/tool-sessions/:id", h.DeleteSession)
}

func httpError(err error, status int, what string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, what+" not found")
	}
	return echo.NewHTTPError(status, err.Error())
}

// -- Tool Handlers --

func (h *Handler) CreateTool(c echo.Context) error {
	var t Tool
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&t); err != nil {
		return err
	}
	if err := h.svc.CreateTool(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTool(c echo.Context) error {
	t, err := h.svc.GetTool(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError, "tool")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTools(c echo.Context) error {
	items, err := h.svc.ListTools(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) UpdateTool(c echo.Context) error {
	var t Tool
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&t); err != nil {
		return err
	}
	t.ID = c.Param("id")
	if err := h.svc.UpdateTool(c.Request().Context(), &t); err != nil {
		return httpError(err, http.StatusBadRequest, "tool")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTool(c echo.Context) error {
	if err := h.svc.DeleteTool(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err, http.StatusInternalServerError, "tool")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Session Handlers --

func (h *Handler) CreateSession(c echo.Context) error {
	var s Session
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&s); err != nil {
		return err
	}
	if err := h.svc.CreateSession(c.Request().Context(), &s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetSession(c echo.Context) error {
	s, err := h.svc.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError, "tool session")
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListSessions(c echo.Context) error {
	items, err := h.svc.ListSessions(c.Request().Context(), SessionFilter{
		PatientID: c.QueryParam("patient_id"),
		Search:    c.QueryParam("q"),
		Tool:      c.QueryParam("tool"),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) UpdateSession(c echo.Context) error {
	var s Session
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&s); err != nil {
		return err
	}
	s.ID = c.Param("id")
	if err := h.svc.UpdateSession(c.Request().Context(), &s); err != nil {
		return httpError(err, http.StatusBadRequest, "tool session")
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.svc.DeleteSession(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err, http.StatusInternalServerError, "tool session")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetStats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}
