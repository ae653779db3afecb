package live

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/platform/auth"
	"github.com/agenda/agenda/internal/platform/db"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler accepts upgrades from the given origins. An empty list accepts
// same-host requests only, which is the gorilla default.
func NewHandler(hub *Hub, origins []string) *Handler {
	h := &Handler{hub: hub, upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}}
	if len(origins) > 0 {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
	return h
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/live", h.Connect, auth.RequireRole(auth.RoleTherapist, auth.RoleAssistant))
}

// Connect upgrades the request and subscribes the client to the topics in
// the "topics" query parameter (calendar by default).
func (h *Handler) Connect(c echo.Context) error {
	tenant := db.TenantFromContext(c.Request().Context())
	logger := zerolog.Ctx(c.Request().Context()).With().Str("tenant", tenant).Logger()

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		return nil
	}

	client := NewClient(uuid.New().String(), tenant)
	client.Topics = topicsParam(c)
	h.hub.Register(client)
	logger.Debug().Str("client", client.ID).Strs("topics", client.Topics).Msg("live client connected")

	go h.writePump(client, ws)
	go h.readPump(client, ws, logger)
	return nil
}

func topicsParam(c echo.Context) []string {
	values := c.QueryParams()["topics"]
	if len(values) == 0 {
		return []string{TopicCalendar}
	}
	return values
}

func (h *Handler) readPump(client *Client, ws *websocket.Conn, logger zerolog.Logger) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
		logger.Debug().Str("client", client.ID).Msg("live client disconnected")
	}()

	ws.SetReadLimit(maxMessage)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		h.hub.ProcessMessage(client, msg)
	}
}

func (h *Handler) writePump(client *Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
