package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/agenda/agenda/internal/platform/auth"
	"github.com/agenda/agenda/internal/platform/db"
	"github.com/agenda/agenda/pkg/caldate"
)

var march = caldate.Month{Year: 2025, Month: time.March}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return ev
	default:
		t.Fatal("expected a pending event")
		return Event{}
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	h := NewHub()
	c := NewClient("c1", "clinic1")
	c.Topics = []string{TopicCalendar}
	h.Register(c)

	if h.ClientCount() != 1 || h.TopicCount("clinic1", TopicCalendar) != 1 {
		t.Fatalf("expected one registered subscriber, got %d/%d", h.ClientCount(), h.TopicCount("clinic1", TopicCalendar))
	}

	h.Unregister(c)
	h.Unregister(c)
	if h.ClientCount() != 0 || h.TopicCount("clinic1", TopicCalendar) != 0 {
		t.Error("expected hub to be empty")
	}
	if _, ok := <-c.Send; ok {
		t.Error("expected send channel to be closed")
	}
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	h := NewHub()
	c := NewClient("c1", "clinic1")
	h.Register(c)

	h.ProcessMessage(c, ClientMessage{Action: "subscribe", Topics: []string{TopicCalendar, "tasks", TopicCalendar}})
	if len(c.Topics) != 2 {
		t.Fatalf("expected duplicate topic ignored, got %v", c.Topics)
	}
	h.ProcessMessage(c, ClientMessage{Action: "unsubscribe", Topics: []string{"tasks"}})
	if len(c.Topics) != 1 || c.Topics[0] != TopicCalendar {
		t.Errorf("expected [calendar], got %v", c.Topics)
	}
	if h.TopicCount("clinic1", "tasks") != 0 {
		t.Error("expected tasks topic removed")
	}
	h.ProcessMessage(c, ClientMessage{Action: "shout", Topics: []string{"x"}})
	if len(c.Topics) != 1 {
		t.Errorf("unknown action must be ignored, got %v", c.Topics)
	}
}

func TestHub_InvalidateMonthsIsTenantScoped(t *testing.T) {
	h := NewHub()
	h.now = func() time.Time { return time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC) }

	mine := NewClient("a", "clinic1")
	mine.Topics = []string{TopicCalendar}
	other := NewClient("b", "clinic2")
	other.Topics = []string{TopicCalendar}
	h.Register(mine)
	h.Register(other)

	ctx := db.WithTenant(context.Background(), "clinic1")
	h.InvalidateMonths(ctx, march, march.Next())

	ev := receive(t, mine)
	if ev.Type != EventMonthsChanged || ev.Topic != TopicCalendar {
		t.Errorf("unexpected event %+v", ev)
	}
	if len(ev.Months) != 2 || ev.Months[0] != march || ev.Months[1] != march.Next() {
		t.Errorf("expected March and April, got %v", ev.Months)
	}
	if len(other.Send) != 0 {
		t.Error("another tenant must not see the change")
	}

	h.InvalidateMonths(ctx)
	if len(mine.Send) != 0 {
		t.Error("no months, no event")
	}
}

func TestHub_BroadcastSkipsFullClients(t *testing.T) {
	h := NewHub()
	c := &Client{ID: "slow", Tenant: "t", Topics: []string{TopicCalendar}, Send: make(chan []byte, 1)}
	h.Register(c)

	ev := Event{Type: EventMonthsChanged, Topic: TopicCalendar}
	if n := h.Broadcast("t", ev); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if n := h.Broadcast("t", ev); n != 0 {
		t.Errorf("expected full client to be skipped, got %d", n)
	}
}

func TestHandler_PushesCalendarChanges(t *testing.T) {
	h := NewHub()
	e := echo.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithUser(c.Request().Context(), "u1", []string{auth.RoleAssistant})
			c.SetRequest(c.Request().WithContext(db.WithTenant(ctx, "clinic1")))
			return next(c)
		}
	})
	NewHandler(h, nil).RegisterRoutes(api)

	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.TopicCount("clinic1", TopicCalendar) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.InvalidateMonths(db.WithTenant(context.Background(), "clinic1"), march)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != EventMonthsChanged || len(ev.Months) != 1 || ev.Months[0] != march {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	e := echo.New()
	e.GET("/live", NewHandler(NewHub(), []string{"https://agenda.example"}).Connect)
	srv := httptest.NewServer(e)
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/live", header)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}
}
