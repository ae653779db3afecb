package clinical

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

// RegisterRoutes exposes clinical content to therapists only.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleTherapist))
	g.GET("/clinical-histories", h.ListHistories)
	g.GET("/patients/:id/clinical-history", h.GetHistory)
	g.PUT("/patients/:id/clinical-history", h.SaveHistory)
	g.DELETE("/patients/:id/clinical-history", h.DeleteHistory)

	g.GET("/therapy-notes", h.ListNotes)
	g.POST("/therapy-notes", h.CreateNote)
	g.GET("/therapy-notes/overview", h.NotesOverview)
	g.GET("/therapy-notes/:id", h.GetNote)
	g.PUT("/therapy-notes/:id", h.UpdateNote)
	g.DELETE("/therapy-notes/:id", h.DeleteNote)
}

func httpError(err error, status int, what string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, what+" not found")
	}
	return echo.NewHTTPError(status, err.Error())
}

// -- Clinical History Handlers --

func (h *Handler) ListHistories(c echo.Context) error {
	items, err := h.svc.ListHistories(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) GetHistory(c echo.Context) error {
	hist, err := h.svc.GetHistoryByPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError, "clinical history")
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) SaveHistory(c echo.Context) error {
	var hist History
	if err := c.Bind(&hist); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hist.PatientID = c.Param("id")
	if err := h.svc.SaveHistory(c.Request().Context(), &hist); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) DeleteHistory(c echo.Context) error {
	if err := h.svc.DeleteHistory(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err, http.StatusInternalServerError, "clinical history")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Therapy Note Handlers --

func (h *Handler) CreateNote(c echo.Context) error {
	var n Note
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&n); err != nil {
		return err
	}
	if err := h.svc.CreateNote(c.Request().Context(), &n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) GetNote(c echo.Context) error {
	n, err := h.svc.GetNote(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError, "therapy note")
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) ListNotes(c echo.Context) error {
	items, err := h.svc.ListNotes(c.Request().Context(), NoteFilter{
		PatientID: c.QueryParam("patient_id"),
		Search:    c.QueryParam("q"),
		Tag:       c.QueryParam("tag"),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) NotesOverview(c echo.Context) error {
	rows, err := h.svc.NotesOverview(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) UpdateNote(c echo.Context) error {
	var n Note
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&n); err != nil {
		return err
	}
	n.ID = c.Param("id")
	if err := h.svc.UpdateNote(c.Request().Context(), &n); err != nil {
		return httpError(err, http.StatusBadRequest, "therapy note")
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) DeleteNote(c echo.Context) error {
	if err := h.svc.DeleteNote(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err, http.StatusInternalServerError, "therapy note")
	}
	return c.NoContent(http.StatusNoContent)
}
