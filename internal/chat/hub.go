// Package chat fans group chat messages out to websocket clients.
package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/metrics"
	"github.com/benvon/cinematch/internal/models"
)

// MaxMessageLength bounds the content of a chat message, in runes.
const MaxMessageLength = 4000

// Message types exchanged over the socket.
const (
	TypeMessage = "message"
	TypePing    = "ping"
	TypePong    = "pong"
	TypeError   = "error"
)

// ErrInvalidMessage is returned for empty or oversized content.
var ErrInvalidMessage = errors.New("message content must be 1-4000 characters")

// Envelope is the JSON frame written to clients.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// inbound is the JSON frame read from clients.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// MessageStore persists chat messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
}

type roomEnvelope struct {
	groupID uuid.UUID
	env     Envelope
}

type clientEnvelope struct {
	client *Client
	env    Envelope
}

// Hub tracks the websocket clients of every group and broadcasts to them.
// All room state is owned by the Run goroutine.
type Hub struct {
	store      MessageStore
	log        *zap.Logger
	upgrader   websocket.Upgrader
	rooms      map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomEnvelope
	replies    chan clientEnvelope
	done       chan struct{}
}

// NewHub creates a hub. checkOrigin may be nil to accept any origin; CORS
// does not apply to websocket upgrades.
func NewHub(store MessageStore, log *zap.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		store: store,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		rooms:      make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomEnvelope, 256),
		replies:    make(chan clientEnvelope, 64),
		done:       make(chan struct{}),
	}
}

// Run owns the room registry until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			total := 0
			for groupID, room := range h.rooms {
				for c := range room {
					close(c.send)
					total++
				}
				delete(h.rooms, groupID)
			}
			metrics.WebSocketConnections.Sub(float64(total))
			h.log.Info("chat_hub_stopped", zap.Int("closed_clients", total))
			return ctx.Err()

		case c := <-h.register:
			room, ok := h.rooms[c.groupID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[c.groupID] = room
			}
			room[c] = struct{}{}
			metrics.WebSocketConnections.Inc()
			h.log.Debug("chat_client_connected",
				zap.String("group_id", c.groupID.String()),
				zap.Int64("user_id", c.userID),
				zap.Int("room_clients", len(room)),
			)

		case c := <-h.unregister:
			room := h.rooms[c.groupID]
			if _, ok := room[c]; !ok {
				continue
			}
			delete(room, c)
			close(c.send)
			if len(room) == 0 {
				delete(h.rooms, c.groupID)
			}
			metrics.WebSocketConnections.Dec()
			h.log.Debug("chat_client_disconnected",
				zap.String("group_id", c.groupID.String()),
				zap.Int64("user_id", c.userID),
			)

		case m := <-h.replies:
			if _, ok := h.rooms[m.client.groupID][m.client]; ok {
				select {
				case m.client.send <- m.env:
				default:
				}
			}

		case m := <-h.broadcast:
			for c := range h.rooms[m.groupID] {
				select {
				case c.send <- m.env:
				default:
					// Slow consumer; drop it rather than stall the room.
					delete(h.rooms[m.groupID], c)
					close(c.send)
					metrics.WebSocketConnections.Dec()
					h.log.Warn("chat_client_dropped_slow",
						zap.String("group_id", m.groupID.String()),
						zap.Int64("user_id", c.userID),
					)
				}
			}
		}
	}
}

// Publish broadcasts a persisted message to the group's connected clients.
func (h *Hub) Publish(msg *models.ChatMessage) {
	select {
	case h.broadcast <- roomEnvelope{groupID: msg.GroupID, env: Envelope{Type: TypeMessage, Data: msg}}:
	case <-h.done:
	}
}

// Send persists content as a message from userID and broadcasts it.
func (h *Hub) Send(ctx context.Context, groupID uuid.UUID, userID int64, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, ErrInvalidMessage
	}
	msg, err := h.store.CreateMessage(ctx, &models.ChatMessage{
		GroupID:  groupID,
		SenderID: userID,
		Content:  content,
	})
	if err != nil {
		return nil, err
	}
	h.Publish(msg)
	return msg, nil
}

// Serve upgrades the request and attaches the connection to the group. The
// caller must have checked membership already.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, groupID uuid.UUID, userID int64) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		return err
	}
	c := newClient(h, conn, groupID, userID)
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return errors.New("chat hub is stopped")
	}
	c.start()
	return nil
}
