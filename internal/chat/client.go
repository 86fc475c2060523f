package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 16 * 1024
	sendBufferSize = 64
	persistTimeout = 5 * time.Second
)

// Client is one websocket connection bound to a group.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	groupID uuid.UUID
	userID  int64
	send    chan Envelope
}

func newClient(h *Hub, conn *websocket.Conn, groupID uuid.UUID, userID int64) *Client {
	return &Client{
		hub:     h,
		conn:    conn,
		groupID: groupID,
		userID:  userID,
		send:    make(chan Envelope, sendBufferSize),
	}
}

func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}

// readPump persists each inbound message and hands it to the hub for broadcast.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("chat_client_read_failed",
					zap.String("group_id", c.groupID.String()),
					zap.Error(err),
				)
			}
			return
		}

		switch in.Type {
		case TypePing:
			c.reply(Envelope{Type: TypePong})
		case TypeMessage, "":
			c.handleMessage(in.Content)
		default:
			c.reply(Envelope{Type: TypeError, Data: "unknown message type"})
		}
	}
}

func (c *Client) handleMessage(content string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if _, err := c.hub.Send(ctx, c.groupID, c.userID, content); err != nil {
		if errors.Is(err, ErrInvalidMessage) {
			c.reply(Envelope{Type: TypeError, Data: err.Error()})
			return
		}
		c.hub.log.Error("chat_message_persist_failed",
			zap.String("group_id", c.groupID.String()),
			zap.Int64("user_id", c.userID),
			zap.Error(err),
		)
		c.reply(Envelope{Type: TypeError, Data: "failed to send message"})
	}
}

// reply queues a frame for this client only. The hub owns c.send, so the
// frame goes through it.
func (c *Client) reply(env Envelope) {
	select {
	case c.hub.replies <- clientEnvelope{client: c, env: env}:
	case <-c.hub.done:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
