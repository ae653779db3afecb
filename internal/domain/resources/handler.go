package resources

import (
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
	g := api.Group("/resources", auth.RequireRole(auth.RoleTherapist))
	g.GET("/folders", h.ListFolders)
	g.POST("/folders", h.CreateFolder)
	g.GET("/folders/:id", h.GetFolder)
	g.PUT("/folders/:id", h.UpdateFolder)
	g.DELETE("/folders/:id", h.DeleteFolder)
	g.GET("/folders/:id/documents", h.ListFolderDocuments)

	g.GET("/documents", h.SearchDocuments)
	g.POST("/documents", h.CreateDocument)
	g.GET("/documents/:id", h.GetDocument)
	g.PUT("/documents/:id", h.UpdateDocument)
	g.DELETE("/documents/:id", h.DeleteDocument)
}

func httpError(err error, status int, what string) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, what+" not found")
	case errors.Is(err, ErrFolderNotEmpty):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(status, err.Error())
}

// -- Folder Handlers --

func (h *Handler) CreateFolder(c echo.Context) error {
	var f Folder
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&f); err != nil {
		return err
	}
	if err := h.svc.CreateFolder(c.Request().Context(), &f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) GetFolder(c echo.Context) error {
	f, err := h.svc.GetFolder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError, "folder")
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) ListFolders(c echo.Context) error {
	items, err := h.svc.ListFolders(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) UpdateFolder(c echo.Context) error {
	var f Folder
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&f); err != nil {
		return err
	}
	f.ID = c.Param("id")
	if err := h.svc.UpdateFolder(c.Request().Context(), &f); err != nil {
		return httpError(err, http.StatusBadRequest, "folder")
	}
	return c.JSON(http.StatusOK, f)
}

// DeleteFolder answers 409 for a folder with documents unless ?cascade=true.
func (h *Handler) DeleteFolder(c echo.Context) error {
	cascade, _ := strconv.ParseBool(c.QueryParam("cascade"))
	if err := h.svc.DeleteFolder(c.Request().Context(), c.Param("id"), cascade); err != nil {
		return httpError(err, http.StatusInternalServerError, "folder")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListFolderDocuments(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.svc.GetFolder(ctx, c.Param("id")); err != nil {
		return httpError(err, http.StatusInternalServerError, "folder")
	}
	items, err := h.svc.DocumentsByFolder(ctx, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

// -- Document Handlers --

func (h *Handler) CreateDocument(c echo.Context) error {
	var d Document
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&d); err != nil {
		return err
	}
	if err := h.svc.CreateDocument(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDocument(c echo.Context) error {
	d, err := h.svc.GetDocument(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError, "document")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) SearchDocuments(c echo.Context) error {
	items, err := h.svc.SearchDocuments(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) UpdateDocument(c echo.Context) error {
	var d Document
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&d); err != nil {
		return err
	}
	d.ID = c.Param("id")
	if err := h.svc.UpdateDocument(c.Request().Context(), &d); err != nil {
		return httpError(err, http.StatusBadRequest, "document")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDocument(c echo.Context) error {
	if err := h.svc.DeleteDocument(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err, http.StatusInternalServerError, "document")
	}
	return c.NoContent(http.StatusNoContent)
}
