// Package stream pushes freshly computed metrics to websocket subscribers.
package stream

import (
	"context"
	"encoding/json"

	"github.com/sheldongordon4/coherence-engine/pkg/logger"
	"github.com/sheldongordon4/coherence-engine/pkg/metrics"
)

const broadcastBuffer = 64

// Envelope wraps every message pushed to subscribers.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Client registration and delivery are serialized through Run; Broadcast
// never blocks the caller.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	count      chan chan int

	logger logger.Logger
}

// NewHub creates a hub. Run must be started for it to deliver anything.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		logger:     logger.Get().Named("stream"),
	}
}

// Run owns the client set until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			metrics.UpdateStreamClients(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			metrics.UpdateStreamClients(len(h.clients))
			h.logger.Debug(ctx, "stream client registered",
				logger.String("remote", client.remoteAddr()))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.UpdateStreamClients(len(h.clients))
				h.logger.Debug(ctx, "stream client unregistered",
					logger.String("remote", client.remoteAddr()))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client is blocked or gone.
					close(client.send)
					delete(h.clients, client)
					metrics.RecordStreamDropped()
				}
			}
			metrics.UpdateStreamClients(len(h.clients))

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// ClientCount reports how many subscribers are connected. It returns zero
// when the hub is not running.
func (h *Hub) ClientCount(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-ctx.Done():
		return 0
	}
}

// BroadcastMetrics pushes a computed metrics payload to all subscribers.
func (h *Hub) BroadcastMetrics(ctx context.Context, payload any) {
	h.send(ctx, Envelope{Type: "metrics", Payload: payload})
}

// BroadcastIncident pushes an emitted drift incident to all subscribers.
func (h *Hub) BroadcastIncident(ctx context.Context, payload any) {
	h.send(ctx, Envelope{Type: "incident", Payload: payload})
}

func (h *Hub) send(ctx context.Context, env Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		h.logger.Error(ctx, "marshalling broadcast payload", logger.Error(err))
		return
	}

	select {
	case h.broadcast <- raw:
		metrics.RecordStreamBroadcast()
	default:
		// Nobody is draining the hub fast enough; drop rather than stall
		// the producer.
		metrics.RecordStreamDropped()
	}
}
