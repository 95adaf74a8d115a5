package hub_test

import (
	"sync"

	"crimewatch/backend/internal/changefeed"
	"crimewatch/backend/internal/models"
)

type MockClient struct {
	id          string
	feed        models.Feed
	RecvChannel chan changefeed.Event

	mu     sync.Mutex
	closed int
}

func newMockClient(id string, feed models.Feed) *MockClient {
	return &MockClient{
		id:          id,
		feed:        feed,
		RecvChannel: make(chan changefeed.Event, 10),
	}
}

func (c *MockClient) GetID() string                           { return c.id }
func (c *MockClient) GetFeed() models.Feed                    { return c.feed }
func (c *MockClient) GetSendChannel() chan<- changefeed.Event { return c.RecvChannel }

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
}

func (c *MockClient) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeEvents struct {
	events chan changefeed.Event
	errors chan error
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{events: make(chan changefeed.Event, 10), errors: make(chan error, 1)}
}

func (f *fakeEvents) Events() <-chan changefeed.Event { return f.events }
func (f *fakeEvents) Errors() <-chan error            { return f.errors }
