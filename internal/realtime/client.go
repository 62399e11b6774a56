package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"eventix/internal/shared/utils/request"
	"eventix/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client commands
const (
	CommandJoinEvent    = "join-event"
	CommandLeaveEvent   = "leave-event"
	CommandSelectSeat   = "select-seat"
	CommandDeselectSeat = "deselect-seat"
)

type command struct {
	Type       string    `json:"type"`
	EventID    uuid.UUID `json:"eventId"`
	SeatID     string    `json:"seatId,omitempty"`
	SeatNumber string    `json:"seatNumber,omitempty"`
}

type ClientOptions struct {
	Buffer         int
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Buffer <= 0 {
		o.Buffer = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	return o
}

func (o ClientOptions) pingPeriod() time.Duration {
	return o.PongTimeout * 9 / 10
}

// Client is one websocket connection. It is a Subscriber on every event it
// joined; a dedicated writer goroutine drains its queue.
type Client struct {
	id        string
	userID    *uuid.UUID
	conn      *websocket.Conn
	hub       *Hub
	publisher Publisher
	opts      ClientOptions
	logger    *logger.Logger

	mu     sync.Mutex
	send   chan Message
	closed bool
	joined map[uuid.UUID]struct{}
}

func newClient(conn *websocket.Conn, hub *Hub, publisher Publisher, userID *uuid.UUID, opts ClientOptions, log *logger.Logger) *Client {
	opts = opts.withDefaults()
	return &Client{
		id:        uuid.NewString(),
		userID:    userID,
		conn:      conn,
		hub:       hub,
		publisher: publisher,
		opts:      opts,
		logger:    log,
		send:      make(chan Message, opts.Buffer),
		joined:    make(map[uuid.UUID]struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Deliver(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close stops the writer, which then closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.leaveAll()
		c.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("Websocket closed unexpectedly", "client_id", c.id, "error", err.Error())
			}
			return
		}

		var cmd command
		if err := request.DecodeStrict(data, &cmd); err != nil {
			c.reply(uuid.Nil, err.Error())
			continue
		}
		c.handle(cmd)
	}
}

func (c *Client) handle(cmd command) {
	if cmd.EventID == uuid.Nil {
		c.reply(uuid.Nil, "eventId is required")
		return
	}

	switch cmd.Type {
	case CommandJoinEvent:
		c.mu.Lock()
		c.joined[cmd.EventID] = struct{}{}
		c.mu.Unlock()
		c.hub.Subscribe(cmd.EventID, c)

	case CommandLeaveEvent:
		c.mu.Lock()
		delete(c.joined, cmd.EventID)
		c.mu.Unlock()
		c.hub.Unsubscribe(cmd.EventID, c.id)

	case CommandSelectSeat, CommandDeselectSeat:
		if cmd.SeatID == "" {
			c.reply(cmd.EventID, "seatId is required")
			return
		}
		if !c.hasJoined(cmd.EventID) {
			c.reply(cmd.EventID, "join the event before selecting seats")
			return
		}
		kind := KindSeatSelected
		if cmd.Type == CommandDeselectSeat {
			kind = KindSeatDeselected
		}
		sel := SeatSelection{SeatID: cmd.SeatID, SeatNumber: cmd.SeatNumber}
		if c.userID != nil {
			sel.UserID = c.userID.String()
		}
		msg, err := NewMessage(cmd.EventID, kind, sel)
		if err != nil {
			return
		}
		msg.Origin = c.id

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
		defer cancel()
		if err := c.publisher.Publish(ctx, msg); err != nil {
			c.logger.Warn("Failed to publish seat selection", "client_id", c.id, "error", err.Error())
		}

	default:
		c.reply(cmd.EventID, "unknown command "+cmd.Type)
	}
}

func (c *Client) hasJoined(eventID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.joined[eventID]
	return ok
}

func (c *Client) leaveAll() {
	c.mu.Lock()
	events := make([]uuid.UUID, 0, len(c.joined))
	for id := range c.joined {
		events = append(events, id)
	}
	c.joined = make(map[uuid.UUID]struct{})
	c.mu.Unlock()

	for _, id := range events {
		c.hub.Unsubscribe(id, c.id)
	}
}

func (c *Client) reply(eventID uuid.UUID, text string) {
	msg, err := NewMessage(eventID, KindError, map[string]string{"message": text})
	if err != nil {
		return
	}
	c.Deliver(msg)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
