package ws_events

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cinematch/core/internal/model"
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Event
	userID uuid.UUID
	rooms  map[string]bool
}

type joinRoomPayload struct {
	Room string `json:"room"`
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan Event, 8),
		userID: userID,
		rooms:  make(map[string]bool),
	}
}

// readPump consumes inbound frames until the connection drops. The
// only frame a client may send is joinRoom, and only for its own
// per-user room.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type != MessageJoinRoom {
			continue
		}

		var payload joinRoomPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			continue
		}

		room := strings.TrimSpace(payload.Room)
		if room != model.UserRoom(c.userID) {
			c.hub.logger.Warn("rejected join for foreign room",
				"user_id", c.userID.String(),
				"room", room)
			continue
		}

		c.hub.join <- joinRequest{client: c, room: room}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for event := range c.send {
		if err := c.conn.WriteJSON(event); err != nil {
			return
		}
	}
}
