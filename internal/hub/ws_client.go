package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"crimewatch/backend/internal/cache"
	"crimewatch/backend/internal/changefeed"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/models"
	"crimewatch/backend/internal/notify"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	sendBuffer = 64
)

// Outgoing frame types.
const (
	MessageFeed  = "feed"
	MessageAlert = "alert"
	MessageError = "error"
)

// Incoming actions.
const (
	ActionMarkRead    = "mark_read"
	ActionMarkAllRead = "mark_all_read"
	ActionRefresh     = "refresh"
)

// Message is one frame written to the socket.
type Message struct {
	Type string `json:"type"`
	// Feed is set on "feed" frames.
	Feed *notify.View `json:"feed,omitempty"`
	// Event and Alert are set on "alert" frames.
	Event changefeed.EventType `json:"event,omitempty"`
	Alert json.RawMessage      `json:"alert,omitempty"`
	// Code and Error are set on "error" frames.
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Action is one frame read from the socket.
type Action struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

// WebSocketClient is a browser or CLI connection. It owns the bell for its feed.
type WebSocketClient struct {
	ID   string
	Feed models.Feed
	Conn *websocket.Conn
	Hub  *ManagerService
	Bell *notify.Bell

	events chan changefeed.Event
	send   chan Message
	log    *logrus.Entry

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketClient wires a connection to a bell backed by store and snapshots.
// limit bounds the feed; zero keeps the bell default.
func NewWebSocketClient(conn *websocket.Conn, h *ManagerService, feed models.Feed, store notify.FeedStore, snapshots cache.Store, limit int, log *logrus.Entry) *WebSocketClient {
	ctx, cancel := context.WithCancel(context.Background())
	c := &WebSocketClient{
		ID:     uuid.New().String(),
		Feed:   feed,
		Conn:   conn,
		Hub:    h,
		events: make(chan changefeed.Event, sendBuffer),
		send:   make(chan Message, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.log = log.WithFields(logrus.Fields{"client": c.ID, "role": feed.Role})
	c.Bell = notify.NewBell(feed, store, snapshots,
		notify.WithLimit(limit),
		notify.WithLogger(c.log),
		notify.WithOnChange(c.pushView),
	)
	return c
}

func (c *WebSocketClient) GetID() string                           { return c.ID }
func (c *WebSocketClient) GetFeed() models.Feed                    { return c.Feed }
func (c *WebSocketClient) GetSendChannel() chan<- changefeed.Event { return c.events }

// Run starts the pumps. The initial feed load happens before any pushed event is applied.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.eventLoop()
	go c.readPump()
}

// Close stops the pumps; writePump sends the close frame and releases the connection.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
	})
}

func (c *WebSocketClient) eventLoop() {
	if err := c.Bell.Load(c.ctx); err != nil {
		c.pushError(err)
	}
	for {
		select {
		case <-c.done:
			return
		case e := <-c.events:
			if e.Table == alertsTable {
				c.push(Message{Type: MessageAlert, Event: e.Type, Alert: e.Record})
				continue
			}
			c.Bell.HandleEvent(e)
		}
	}
}

func (c *WebSocketClient) pushView(v notify.View) {
	c.push(Message{Type: MessageFeed, Feed: &v})
}

func (c *WebSocketClient) pushError(err error) {
	c.push(Message{Type: MessageError, Code: errs.Code(err), Error: err.Error()})
}

func (c *WebSocketClient) push(m Message) {
	select {
	case c.send <- m:
	case <-c.done:
	default:
		c.log.WithField("type", m.Type).Warn("send buffer full, frame dropped")
	}
}

func (c *WebSocketClient) handleAction(a Action) {
	var err error
	switch a.Action {
	case ActionMarkRead:
		err = c.Bell.MarkRead(c.ctx, a.ID)
	case ActionMarkAllRead:
		err = c.Bell.MarkAllRead(c.ctx)
	case ActionRefresh:
		err = c.Bell.Load(c.ctx)
	default:
		c.log.WithField("action", a.Action).Debug("unknown action ignored")
		return
	}
	if err != nil {
		c.log.WithError(err).WithField("action", a.Action).Warn("action failed")
		c.pushError(err)
	}
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("websocket read failed")
			}
			return
		}

		var a Action
		if err := json.Unmarshal(raw, &a); err != nil {
			c.log.WithError(err).Debug("skipping malformed frame")
			continue
		}
		c.handleAction(a)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case m := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(m); err != nil {
				c.log.WithError(err).Debug("websocket write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
