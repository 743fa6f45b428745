package eventhub

import "mediaguard/backend/internal/models"

// Client is one subscriber of the ledger event stream (a websocket session,
// the Telegram owner notifier). The hub owns the lifecycle: it calls Run once
// on register and Close once on unregister.
type Client interface {
	// GetID returns a key unique among connected clients.
	GetID() string
	// Accepts filters events before they are queued for the client.
	Accepts(ev models.Event) bool
	// GetSendChannel returns the channel the hub writes events to.
	GetSendChannel() chan<- models.Event
	Run()
	Close()
}

// Overflower is implemented by clients that would rather lose queued events
// than be disconnected. When the send channel is full the hub hands the event
// to Overflow instead of dropping the client.
type Overflower interface {
	Overflow(ev models.Event)
}
