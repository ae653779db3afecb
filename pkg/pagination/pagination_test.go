package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor("")
	if p.Limit != DefaultLimit {
		t.Errorf("expected limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_Clamping(t *testing.T) {
	if p := paramsFor("?limit=10000"); p.Limit != MaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", MaxLimit, p.Limit)
	}
	if p := paramsFor("?limit=-3&offset=-9"); p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("unexpected params %+v", p)
	}
	if p := paramsFor("?limit=5&offset=10"); p.Limit != 5 || p.Offset != 10 {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	if r := NewResponse(nil, 100, 20, 0); !r.HasMore {
		t.Error("expected has_more when more results remain")
	}
	if r := NewResponse(nil, 100, 20, 80); r.HasMore {
		t.Error("expected no has_more on the last page")
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, total := Page(items, Params{Limit: 2, Offset: 1})
	if total != 5 || len(page) != 2 || page[0] != 2 || page[1] != 3 {
		t.Errorf("unexpected page %v (total %d)", page, total)
	}

	page, _ = Page(items, Params{Limit: 10, Offset: 4})
	if len(page) != 1 || page[0] != 5 {
		t.Errorf("expected tail page [5], got %v", page)
	}

	page, total = Page(items, Params{Limit: 10, Offset: 9})
	if len(page) != 0 || total != 5 {
		t.Errorf("expected empty page past the end, got %v", page)
	}
}

func TestRespond(t *testing.T) {
	r := Respond([]string{"a", "b", "c"}, Params{Limit: 2})
	if r.Total != 3 || !r.HasMore {
		t.Errorf("unexpected response %+v", r)
	}
	if data, ok := r.Data.([]string); !ok || len(data) != 2 {
		t.Errorf("unexpected data %v", r.Data)
	}
}
