package hub

import (
	"context"
	"sync"

	"crimewatch/backend/internal/changefeed"
	"crimewatch/backend/internal/logger"
	"crimewatch/backend/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Events is the consuming side of a change-feed subscription.
type Events interface {
	Events() <-chan changefeed.Event
	Errors() <-chan error
}

// ManagerService owns the connected clients and the single change-feed subscription
// all of them share.
type ManagerService struct {
	RegisterCh   chan Client
	UnregisterCh chan Client

	events  Events
	log     *logrus.Entry
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[string]Client

	done chan struct{}
}

type Option func(*ManagerService)

func WithLogger(l *logrus.Entry) Option { return func(m *ManagerService) { m.log = l } }

func WithMetrics(mt *metrics.Metrics) Option { return func(m *ManagerService) { m.metrics = mt } }

func NewManagerService(events Events, opts ...Option) *ManagerService {
	m := &ManagerService{
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		events:       events,
		log:          logger.Discard(),
		clients:      make(map[string]Client),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Done is closed once Run has returned.
func (m *ManagerService) Done() <-chan struct{} { return m.done }

// Connected reports whether a client with this id is registered.
func (m *ManagerService) Connected(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.clients[id]
	return ok
}

// ClientCount returns the number of registered clients.
func (m *ManagerService) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Run is the dispatcher loop. It returns when ctx ends, closing every client.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)

	events := m.events.Events()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return

		case c := <-m.RegisterCh:
			m.register(c)

		case c := <-m.UnregisterCh:
			m.unregister(c)

		case err := <-m.events.Errors():
			m.log.WithError(err).Error("change feed unavailable, live updates paused")

		case e, ok := <-events:
			if !ok {
				m.log.Warn("change feed closed")
				events = nil
				continue
			}
			m.broadcast(e)
		}
	}
}

func (m *ManagerService) register(c Client) {
	m.mu.Lock()
	m.clients[c.GetID()] = c
	m.mu.Unlock()

	role := string(c.GetFeed().Role)
	m.metrics.ClientConnected(role, 1)
	m.log.WithFields(logrus.Fields{"client": c.GetID(), "role": role}).Debug("client registered")
}

func (m *ManagerService) unregister(c Client) {
	m.mu.Lock()
	_, ok := m.clients[c.GetID()]
	delete(m.clients, c.GetID())
	m.mu.Unlock()
	if !ok {
		return
	}

	c.Close()
	m.metrics.ClientConnected(string(c.GetFeed().Role), -1)
	m.log.WithField("client", c.GetID()).Debug("client unregistered")
}

func (m *ManagerService) closeAll() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.Close()
		m.metrics.ClientConnected(string(c.GetFeed().Role), -1)
	}
}

func (m *ManagerService) broadcast(e changefeed.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.clients {
		feed := c.GetFeed()
		if !Wants(feed, e) {
			continue
		}
		select {
		case c.GetSendChannel() <- e:
			if e.Table != alertsTable {
				m.metrics.NotificationDelivered(string(feed.Role))
			}
		default:
			// slow client; the bell catches up on its next Load
			m.log.WithFields(logrus.Fields{"client": c.GetID(), "table": e.Table}).Warn("client buffer full, event dropped")
		}
	}
}

// Unregister removes c unless the manager has already stopped.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Register adds c unless the manager has already stopped. It reports whether c was handed over.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}
