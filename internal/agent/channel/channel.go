package agent_channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected = errors.New("channel not connected")
	ErrClosed       = errors.New("channel closed")
)

type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Handler func(payload json.RawMessage)

type joinRoomMessage struct {
	Type    string `json:"type"`
	Payload struct {
		Room string `json:"room"`
	} `json:"payload"`
}

// Channel is one explicitly owned event-channel connection. No
// package-level singleton: whoever needs a channel constructs one,
// owns its lifecycle and closes it.
//
// This layer never reconnects on its own. A dropped connection is
// reported through Done; the owner decides whether to Connect again,
// and must re-issue JoinRoom after it does.
type Channel struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]Handler
	done     chan struct{}
	closed   bool
}

type Option func(*Channel)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Channel) {
		c.dialer = dialer
	}
}

func New(url string, opts ...Option) *Channel {
	c := &Channel{
		url:      url,
		dialer:   websocket.DefaultDialer,
		logger:   slog.Default(),
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the endpoint. Calling it while already connected is a
// no-op, so there is exactly one underlying connection per Channel.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.conn != nil {
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.Error("channel connect failed", slog.String("error", err.Error()))
		return err
	}

	c.conn = conn
	c.done = make(chan struct{})
	go c.readLoop(conn, c.done)

	return nil
}

// JoinRoom subscribes the connection to a room. Subscriptions do not
// survive reconnects; issue JoinRoom again after every Connect.
func (c *Channel) JoinRoom(room string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	msg := joinRoomMessage{Type: "joinRoom"}
	msg.Payload.Room = room
	return conn.WriteJSON(msg)
}

// On installs the handler for an event name. One slot per name: a
// second On for the same name replaces the first, it never stacks.
func (c *Channel) On(event string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if handler == nil {
		delete(c.handlers, event)
		return
	}
	c.handlers[event] = handler
}

// Connected reports whether the underlying connection is up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Done returns a channel closed when the current connection drops.
// Nil when never connected.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Close tears the connection down and clears every handler
// registration. The Channel cannot be reused afterwards.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.handlers = make(map[string]Handler)
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		close(done)
	}()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Warn("channel read failed", slog.String("error", err.Error()))
			}
			return
		}

		c.mu.Lock()
		handler := c.handlers[event.Type]
		c.mu.Unlock()

		if handler != nil {
			handler(event.Payload)
		}
	}
}
