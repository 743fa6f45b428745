package eventhub_test

import (
	"sync"

	"mediaguard/backend/internal/models"
)

type mockClient struct {
	id          string
	only        string
	RecvChannel chan models.Event

	mu     sync.Mutex
	runs   int
	closed bool
}

func newMockClient(id string) *mockClient {
	return &mockClient{id: id, RecvChannel: make(chan models.Event, 10)}
}

func (c *mockClient) GetID() string { return c.id }

func (c *mockClient) Accepts(ev models.Event) bool { return c.only == "" || ev.Type == c.only }

func (c *mockClient) GetSendChannel() chan<- models.Event { return c.RecvChannel }

func (c *mockClient) Run() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
}

func (c *mockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *mockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// overflowClient keeps every event the hub could not queue.
type overflowClient struct {
	*mockClient

	overflowMu sync.Mutex
	overflowed []models.Event
}

func (c *overflowClient) Overflow(ev models.Event) {
	c.overflowMu.Lock()
	defer c.overflowMu.Unlock()
	c.overflowed = append(c.overflowed, ev)
}

func (c *overflowClient) overflowCount() int {
	c.overflowMu.Lock()
	defer c.overflowMu.Unlock()
	return len(c.overflowed)
}
