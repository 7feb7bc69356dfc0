package ws_events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cinematch/core/internal/model"
)

const (
	EventWinnerDecided = "winnerDecided"
	EventGroupUpdated  = "groupUpdated"
	EventError         = "error"

	// Client -> server subscription frame.
	MessageJoinRoom = "joinRoom"
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WinnerPayload struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	Rating     float64  `json:"rating"`
	Genres     []string `json:"genres"`
	Overview   string   `json:"overview"`
	PosterLink string   `json:"poster_link"`
}

type roomEvent struct {
	room  string
	event Event
}

// Hub keeps one set of connected clients per room. Rooms are per-user
// (`user_{id}`), so a group broadcast is a fan-out over the members'
// rooms. Delivery is best effort: a client that is not connected at
// broadcast time simply misses the event and resyncs over HTTP.
type Hub struct {
	logger *slog.Logger

	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomEvent
	join       chan joinRequest
	mu         sync.RWMutex
}

type joinRequest struct {
	client *Client
	room   string
}

type HubOption func(*Hub)

func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		logger:     slog.Default(),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomEvent, 16),
		join:       make(chan joinRequest),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case req := <-h.join:
			h.handleJoin(req.client, req.room)

		case re := <-h.broadcast:
			h.broadcastToRoom(re.room, re.event)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	h.logger.Info("client registered",
		"user_id", client.userID.String())
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	for room := range client.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}

	h.logger.Info("client unregistered",
		"user_id", client.userID.String())
}

func (h *Hub) handleJoin(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.rooms[room] = true

	h.logger.Info("client joined room",
		"user_id", client.userID.String(),
		"room", room)
}

func (h *Hub) broadcastToRoom(room string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	for client := range members {
		select {
		case client.send <- event:
		default:
			// Slow consumer, drop it.
			close(client.send)
			delete(h.rooms[room], client)
			delete(h.clients, client)
		}
	}
}

// NotifyWinnerDecided pushes the decided winner to every member's room.
func (h *Hub) NotifyWinnerDecided(userIDs []uuid.UUID, winner *model.MovieMeta) {
	payload := WinnerPayload{
		ID:         winner.ID.String(),
		Title:      winner.Title,
		Year:       winner.Year,
		Rating:     winner.Rating,
		Genres:     winner.Genres,
		Overview:   winner.Overview,
		PosterLink: winner.PosterLink,
	}
	for _, userID := range userIDs {
		h.broadcast <- roomEvent{
			room:  model.UserRoom(userID),
			event: Event{Type: EventWinnerDecided, Payload: payload},
		}
	}

	h.logger.Info("winner notification queued",
		"movie_id", winner.ID.String(),
		"members", len(userIDs))
}

func (h *Hub) NotifyGroupUpdated(userIDs []uuid.UUID, message string) {
	for _, userID := range userIDs {
		h.broadcast <- roomEvent{
			room: model.UserRoom(userID),
			event: Event{
				Type:    EventGroupUpdated,
				Payload: map[string]interface{}{"message": message},
			},
		}
	}
}
