// Package live pushes change notifications to connected browsers over
// WebSockets so open calendar pages refresh without polling. Subscriptions
// are scoped to the tenant of the connecting request.
package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/platform/db"
	"github.com/agenda/agenda/pkg/caldate"
)

// TopicCalendar carries appointment changes, with the affected months.
const TopicCalendar = "calendar"

const EventMonthsChanged = "months.changed"

// Event is one notification sent to subscribed clients.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Months    []caldate.Month `json:"months,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ClientMessage is what a client sends to change its subscriptions.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Client is one connection. Send is closed when the hub drops the client.
type Client struct {
	ID     string
	Tenant string
	Topics []string
	Send   chan []byte
}

func NewClient(id, tenant string) *Client {
	return &Client{ID: id, Tenant: tenant, Send: make(chan []byte, 64)}
}

// Hub tracks clients by tenant-qualified topic.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		now:     time.Now,
	}
}

func key(tenant, topic string) string { return tenant + ":" + topic }

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.add(client, topic)
	}
}

func (h *Hub) add(client *Client, topic string) {
	k := key(client.Tenant, topic)
	if h.clients[k] == nil {
		h.clients[k] = make(map[*Client]struct{})
	}
	h.clients[k][client] = struct{}{}
}

func (h *Hub) remove(client *Client, topic string) {
	k := key(client.Tenant, topic)
	if subscribers, ok := h.clients[k]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, k)
		}
	}
}

// Unregister drops the client from every topic and closes its Send channel.
// Unregistering twice is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.remove(client, topic)
	}
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	have := make(map[string]bool, len(client.Topics))
	for _, t := range client.Topics {
		have[t] = true
	}
	for _, topic := range topics {
		if have[topic] {
			continue
		}
		have[topic] = true
		h.add(client, topic)
		client.Topics = append(client.Topics, topic)
	}
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	drop := make(map[string]bool, len(topics))
	for _, t := range topics {
		drop[t] = true
		h.remove(client, t)
	}
	remaining := client.Topics[:0]
	for _, t := range client.Topics {
		if !drop[t] {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// ProcessMessage applies a subscribe or unsubscribe request. Other actions
// are ignored.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Broadcast sends event to the tenant's subscribers of its topic. Clients
// whose buffer is full miss the event rather than block the sender.
func (h *Hub) Broadcast(tenant string, event Event) int {
	data, err := json.Marshal(event)
	if err != nil {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.clients[key(tenant, event.Topic)] {
		select {
		case client.Send <- data:
			sent++
		default:
		}
	}
	return sent
}

// InvalidateMonths tells the tenant's calendar subscribers which months
// changed. It lets the hub sit behind the appointment service's change hook.
func (h *Hub) InvalidateMonths(ctx context.Context, months ...caldate.Month) {
	if len(months) == 0 {
		return
	}
	tenant := db.TenantFromContext(ctx)
	n := h.Broadcast(tenant, Event{
		Type:      EventMonthsChanged,
		Topic:     TopicCalendar,
		Months:    months,
		Timestamp: h.now().UTC(),
	})
	if n > 0 {
		zerolog.Ctx(ctx).Debug().Int("clients", n).Msg("calendar change pushed")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns how many of the tenant's clients follow topic.
func (h *Hub) TopicCount(tenant, topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[key(tenant, topic)])
}
