package server

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vladimirruppel/roomchat/internal/metrics"
)

type subscription struct {
	client *Client
	roomID int64
}

// delivery is a frame for one client (to != nil) or for every subscriber
// of a room except one.
type delivery struct {
	roomID int64
	to     *Client
	except *Client
	data   []byte
}

// Hub owns the set of connected clients and their room subscriptions.
// All of it is touched only by Run.
type Hub struct {
	clients map[*Client]struct{}
	rooms   map[int64]map[*Client]struct{}

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	deliver     chan delivery
	done        chan struct{}

	log zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]struct{}),
		rooms:       make(map[int64]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		deliver:     make(chan delivery, 256),
		done:        make(chan struct{}),
		log:         log.With().Str("component", "hub").Logger(),
	}
}

// Run serves hub requests until ctx ends, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.ServerConnections.Set(float64(len(h.clients)))
			h.log.Debug().Int("clients", len(h.clients)).Msg("client registered")

		case c := <-h.unregister:
			h.drop(c)

		case s := <-h.subscribe:
			if _, ok := h.clients[s.client]; !ok {
				continue
			}
			subs, ok := h.rooms[s.roomID]
			if !ok {
				subs = make(map[*Client]struct{})
				h.rooms[s.roomID] = subs
			}
			subs[s.client] = struct{}{}

		case s := <-h.unsubscribe:
			h.leave(s.client, s.roomID)

		case d := <-h.deliver:
			if d.to != nil {
				h.send(d.to, d.data)
				continue
			}
			for c := range h.rooms[d.roomID] {
				if c != d.except {
					h.send(c, d.data)
				}
			}

		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

// send queues data for c. A client that cannot keep up is dropped; its
// write pump sees the closed channel and hangs up.
func (h *Hub) send(c *Client, data []byte) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.Warn().Str("conn_id", c.id).Msg("client send buffer full, dropping client")
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	for roomID := range h.rooms {
		h.leave(c, roomID)
	}
	delete(h.clients, c)
	close(c.send)
	metrics.ServerConnections.Set(float64(len(h.clients)))
	h.log.Debug().Int("clients", len(h.clients)).Msg("client unregistered")
}

func (h *Hub) leave(c *Client, roomID int64) {
	subs, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.rooms, roomID)
	}
}

// The methods below hand a request to Run. They return without effect
// once the hub has stopped.

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Subscribe(c *Client, roomID int64) {
	select {
	case h.subscribe <- subscription{client: c, roomID: roomID}:
	case <-h.done:
	}
}

func (h *Hub) Unsubscribe(c *Client, roomID int64) {
	select {
	case h.unsubscribe <- subscription{client: c, roomID: roomID}:
	case <-h.done:
	}
}

// SendTo queues a frame for a single client.
func (h *Hub) SendTo(c *Client, data []byte) {
	select {
	case h.deliver <- delivery{to: c, data: data}:
	case <-h.done:
	}
}

// Broadcast queues a frame for every subscriber of roomID except the
// given client, which may be nil.
func (h *Hub) Broadcast(roomID int64, except *Client, data []byte) {
	select {
	case h.deliver <- delivery{roomID: roomID, except: except, data: data}:
	case <-h.done:
	}
}
