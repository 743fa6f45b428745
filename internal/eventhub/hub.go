// Package eventhub fans ledger events out to connected clients. Events enter
// either directly through Publish or from the Redis channel the ledger
// publishes to, so several service instances share one stream.
package eventhub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"mediaguard/backend/internal/models"
)

// ErrHubStopped is returned by Publish once Run has returned.
var ErrHubStopped = errors.New("eventhub: hub stopped")

// Hub keeps the set of clients and broadcasts events to them.
type Hub struct {
	RegisterCh   chan Client
	UnregisterCh chan Client
	EventsCh     chan models.Event

	mu      sync.RWMutex
	clients map[string]Client

	done chan struct{}
	log  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		EventsCh:     make(chan models.Event, 64),
		clients:      make(map[string]Client),
		done:         make(chan struct{}),
		log:          logger.With("component", "eventhub"),
	}
}

// Run serves register, unregister and broadcast requests until ctx ends.
// Remaining clients are closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, c := range h.clients {
			delete(h.clients, id)
			c.Close()
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.RegisterCh:
			h.mu.Lock()
			if old, ok := h.clients[c.GetID()]; ok {
				old.Close()
			}
			h.clients[c.GetID()] = c
			h.mu.Unlock()
			c.Run()
			h.log.Debug("client registered", "client", c.GetID())

		case c := <-h.UnregisterCh:
			h.remove(c)

		case ev := <-h.EventsCh:
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev models.Event) {
	h.mu.RLock()
	var slow []Client
	for _, c := range h.clients {
		if !c.Accepts(ev) {
			continue
		}
		select {
		case c.GetSendChannel() <- ev:
		default:
			if o, ok := c.(Overflower); ok {
				o.Overflow(ev)
				continue
			}
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow client", "client", c.GetID(), "event", ev.Type)
		h.remove(c)
	}
}

// remove closes c only if it is still the registered client for its id.
func (h *Hub) remove(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.GetID()]; ok && cur == c {
		delete(h.clients, c.GetID())
		c.Close()
		h.log.Debug("client unregistered", "client", c.GetID())
	}
}

// Publish queues ev for broadcast. It lets the hub stand in for the Redis
// publisher when the service runs as a single instance.
func (h *Hub) Publish(ctx context.Context, ev models.Event) error {
	select {
	case h.EventsCh <- ev:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register hands c to the hub; it is a no-op after the hub stopped.
func (h *Hub) Register(c Client) {
	select {
	case h.RegisterCh <- c:
	case <-h.done:
	}
}

// Unregister is safe to call from client goroutines after the hub stopped.
func (h *Hub) Unregister(c Client) {
	select {
	case h.UnregisterCh <- c:
	case <-h.done:
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} { return h.done }
