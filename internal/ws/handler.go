package ws

import (
	"context"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"chat-service/internal/shared/jwt"
)

type Handler struct {
	Hub *Hub

	// CanJoin gates subscriptions to conversation rooms; only members
	// may listen in.
	CanJoin func(ctx context.Context, userID, conversationID uint) bool

	InsecureSkipVerify bool
}

type controlMsg struct {
	Action         string `json:"action"` // "join" | "leave"
	ConversationID uint   `json:"conversation_id"`
}

// Handle upgrades the connection. Browser WebSocket clients cannot set
// an Authorization header, so the token rides a query param.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := jwt.Parse(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	opts := &websocket.AcceptOptions{}
	if h.InsecureSkipVerify {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}

	client := h.Hub.AddClient(userID, conn)
	defer h.Hub.RemoveClient(client)

	for {
		var msg controlMsg
		if err := wsjson.Read(r.Context(), conn, &msg); err != nil {
			return
		}
		if msg.ConversationID == 0 {
			continue
		}
		room := ConversationRoom(msg.ConversationID)
		switch msg.Action {
		case "join":
			if h.CanJoin != nil && !h.CanJoin(r.Context(), userID, msg.ConversationID) {
				continue
			}
			h.Hub.Join(client, room)
		case "leave":
			h.Hub.Leave(client, room)
		}
	}
}
