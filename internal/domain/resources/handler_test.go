package resources

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/agenda/agenda/internal/platform/validation"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc := newTestService()
	e := echo.New()
	e.Validator = validation.New()
	return NewHandler(svc), svc, e
}

func TestHandler_CreateFolder(t *testing.T) {
	h, _, e := newTestHandler()
	for _, tt := range []struct {
		body string
		code int
	}{
		{`{"name":"Escalas","color":"#8b5cf6"}`, http.StatusCreated},
		{`{"name":"Escalas","color":"violeta"}`, http.StatusBadRequest},
		{`{"description":"x"}`, http.StatusBadRequest},
	} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		err := h.CreateFolder(e.NewContext(req, rec))
		code := rec.Code
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		if code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.body, tt.code, code)
		}
	}
}

func TestHandler_DeleteFolder(t *testing.T) {
	h, svc, e := newTestHandler()
	f := mustFolder(t, svc, "Escalas")
	mustDocument(t, svc, f.ID, "Beck", "")

	del := func(query string) (*httptest.ResponseRecorder, error) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/"+query, nil), rec)
		c.SetParamNames("id")
		c.SetParamValues(f.ID)
		return rec, h.DeleteFolder(c)
	}

	_, err := del("")
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
	rec, err := del("?cascade=true")
	if err != nil || rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %v / %d", err, rec.Code)
	}
	_, err = del("")
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListFolderDocumentsMissingFolder(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("missing")
	he, ok := h.ListFolderDocuments(c).(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", he)
	}
}
