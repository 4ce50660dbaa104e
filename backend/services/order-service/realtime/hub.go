package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Event names pushed to clients.
const (
	EventNewOrder           = "new_order"
	EventOrderStatusUpdated = "order_status_updated"
	EventJoined             = "joined"
	EventError              = "error"
)

// Broadcaster delivers an event to every connection currently in a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, payload interface{}) error
}

type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub tracks room membership for the connections of this process.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	members map[*Client]map[string]struct{}

	logger  *zap.Logger
	dropped prometheus.Counter
}

func NewHub(logger *zap.Logger, reg prometheus.Registerer) *Hub {
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "localcommerce",
		Subsystem: "realtime",
		Name:      "dropped_messages_total",
		Help:      "Messages dropped because a connection's outbound buffer was full.",
	})
	if reg != nil {
		reg.MustRegister(dropped)
	}
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		members: make(map[*Client]map[string]struct{}),
		logger:  logger,
		dropped: dropped,
	}
}

// Join is idempotent. A closed client is never added, so a join racing the
// connection's teardown cannot outlive it.
func (h *Hub) Join(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed() {
		return false
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	if h.members[c] == nil {
		h.members[c] = make(map[string]struct{})
	}
	h.members[c][room] = struct{}{}
	return true
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

// Remove drops c from every room it joined.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.members[c] {
		h.leaveLocked(c, room)
	}
	delete(h.members, c)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if clients, ok := h.rooms[room]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.members[c]; ok {
		delete(rooms, room)
	}
}

// Members returns the number of connections in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast encodes the event once and enqueues it on every member without
// blocking; members whose buffer is full miss it.
func (h *Hub) Broadcast(ctx context.Context, room, event string, payload interface{}) error {
	msg, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}
	return h.deliver(ctx, room, msg)
}

func (h *Hub) deliver(ctx context.Context, room string, msg []byte) error {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !c.enqueue(msg) {
			h.dropped.Inc()
			h.logger.Warn("dropping realtime message",
				zap.String("room", room),
				zap.String("client_id", c.ID()),
			)
		}
	}
	return nil
}
