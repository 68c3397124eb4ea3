package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// UserRoom is the personal room every connection joins on accept;
// conversation-level events (new conversation, etc.) land here.
func UserRoom(userID uint) string { return fmt.Sprintf("user:%d", userID) }

// ConversationRoom is joined explicitly while a client views a
// conversation.
func ConversationRoom(conversationID uint) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: map[string]map[*Client]struct{}{}}
}

func (h *Hub) AddClient(userID uint, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan Event, 64),
		ctx:    ctx,
		cancel: cancel,
	}

	h.Join(c, UserRoom(userID))

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

// RemoveClient detaches c from every room before stopping its loops,
// so a concurrent Emit can never see a client whose loops are gone.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	for room, set := range h.rooms {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	c.cancel()

	if c.Conn != nil {
		_ = c.Conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = map[*Client]struct{}{}
	}
	h.rooms[room][c] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Emit delivers ev to every client currently in room. Delivery is
// at-most-once: a client whose send buffer is full drops the event and
// must re-fetch on reconnect.
func (h *Hub) Emit(room string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		select {
		case c.Send <- ev:
		default:
		}
	}
}

// EmitToUsers emits to each user's personal room.
func (h *Hub) EmitToUsers(userIDs []uint, ev Event) {
	for _, uid := range userIDs {
		h.Emit(UserRoom(uid), ev)
	}
}

// writeLoop drains Send until the client context is cancelled. The
// channel is never closed: a broadcast may still hold a reference to
// the client while it disconnects, and a send on a closed channel
// would panic the process. The channel is simply left for the GC.
func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.Send:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = wsjson.Write(writeCtx, c.Conn, ev)
			cancel()
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Conn.Ping(pingCtx)
			cancel()
		}
	}
}
