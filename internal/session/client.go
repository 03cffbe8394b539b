package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"peerhub/internal/models"
)

// Client wraps one websocket connection. Writes are serialized by the send
// mutex; reads stay on the gateway's goroutine.
type Client struct {
	ID   string
	Conn *websocket.Conn

	sendMu sync.Mutex
	hook   func(models.WSFrame)

	mu    sync.Mutex
	rooms map[string]struct{}
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:    uuid.New().String(),
		Conn:  conn,
		rooms: make(map[string]struct{}),
	}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.sendMu.Lock()
	c.hook = fn
	c.sendMu.Unlock()
}

// Send delivers a frame best-effort. Broadcasts carry no delivery guarantee,
// so write errors are swallowed.
func (c *Client) Send(frame models.WSFrame) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.hook != nil {
		c.hook(frame)
		return
	}
	if c.Conn == nil {
		return
	}
	_ = c.Conn.WriteJSON(frame)
}

func (c *Client) trackRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rooms != nil {
		c.rooms[roomID] = struct{}{}
	}
}

// takeRooms returns the rooms this client touched and clears the set so a
// second detach finds nothing to do.
func (c *Client) takeRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	c.rooms = nil
	return ids
}
