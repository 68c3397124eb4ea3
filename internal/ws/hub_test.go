package ws

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(userID uint, buf int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{UserID: userID, Send: make(chan Event, buf), ctx: ctx, cancel: cancel}
}

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.Send:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestEmitReachesRoomMembersOnly(t *testing.T) {
	h := NewHub()
	a := testClient(1, 8)
	b := testClient(2, 8)
	c := testClient(3, 8)

	h.Join(a, ConversationRoom(7))
	h.Join(b, ConversationRoom(7))
	h.Join(c, ConversationRoom(8))

	h.Emit(ConversationRoom(7), Event{Type: "chat:new_message"})

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(c))
}

func TestLeaveStopsDelivery(t *testing.T) {
	h := NewHub()
	a := testClient(1, 8)

	h.Join(a, ConversationRoom(7))
	h.Leave(a, ConversationRoom(7))

	h.Emit(ConversationRoom(7), Event{Type: "chat:new_message"})
	assert.Empty(t, drain(a))
}

func TestEmitToUsersHitsPersonalRooms(t *testing.T) {
	h := NewHub()
	a := testClient(1, 8)
	b := testClient(2, 8)

	h.Join(a, UserRoom(1))
	h.Join(b, UserRoom(2))

	h.EmitToUsers([]uint{1}, Event{Type: "chat:new_conversation"})

	got := drain(a)
	require.Len(t, got, 1)
	assert.Equal(t, "chat:new_conversation", got[0].Type)
	assert.Empty(t, drain(b))
}

func TestEmitDropsWhenBufferFull(t *testing.T) {
	h := NewHub()
	a := testClient(1, 1)
	h.Join(a, ConversationRoom(7))

	h.Emit(ConversationRoom(7), Event{Type: "first"})
	// Buffer is full now; this one is dropped, not blocked on.
	h.Emit(ConversationRoom(7), Event{Type: "second"})

	got := drain(a)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Type)
}

func TestEmitDuringDisconnectDoesNotPanic(t *testing.T) {
	h := NewHub()

	for i := 0; i < 200; i++ {
		c := testClient(1, 1)
		h.Join(c, ConversationRoom(7))
		// Fill the buffer so concurrent emits hit the drop path too.
		h.Emit(ConversationRoom(7), Event{Type: "chat:new_message"})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Emit(ConversationRoom(7), Event{Type: "chat:new_message"})
			}
		}()
		h.RemoveClient(c)
		wg.Wait()

		// The detached client must be unreachable from the hub.
		h.Emit(ConversationRoom(7), Event{Type: "chat:new_message"})
	}
}

func TestRemoveClientDetachesFromAllRooms(t *testing.T) {
	h := NewHub()
	c := testClient(1, 8)

	h.Join(c, UserRoom(1))
	h.Join(c, ConversationRoom(7))
	h.RemoveClient(c)

	h.Emit(ConversationRoom(7), Event{Type: "chat:new_message"})
	h.EmitToUsers([]uint{1}, Event{Type: "chat:new_conversation"})

	assert.Empty(t, drain(c))
}

func TestEmptyRoomIsRemoved(t *testing.T) {
	h := NewHub()
	a := testClient(1, 8)

	h.Join(a, ConversationRoom(7))
	h.Leave(a, ConversationRoom(7))

	h.mu.RLock()
	_, ok := h.rooms[ConversationRoom(7)]
	h.mu.RUnlock()
	assert.False(t, ok)
}
