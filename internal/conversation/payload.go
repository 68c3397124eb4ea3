package conversation

import (
	"time"

	"chat-service/internal/user"
)

type CreateReq struct {
	Type        Type   `json:"type" validate:"required,oneof=PRIVATE GROUP"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MemberIDs   []uint `json:"member_ids" validate:"required,min=1"`
}

// LastMessage is the single most-recent message of a conversation,
// scanned straight off the messages table for the listing view.
type LastMessage struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversation_id"`
	SenderID       uint      `json:"sender_id"`
	Content        string    `json:"content,omitempty"`
	Type           string    `json:"message_type"`
	AttachmentURL  string    `json:"attachment_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ListItem struct {
	ID          uint          `json:"id"`
	Type        Type          `json:"type"`
	DisplayName string        `json:"display_name"`
	Description string        `json:"description,omitempty"`
	AvatarURL   string        `json:"avatar_url,omitempty"`
	Members     []user.Public `json:"members"`
	LastMessage *LastMessage  `json:"last_message,omitempty"`
	UnreadCount int64         `json:"unread_count"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type Detail struct {
	Conversation
	DisplayName string       `json:"display_name"`
	AvatarURL   string       `json:"avatar_url,omitempty"`
	Members     []MemberInfo `json:"members"`
}

type MemberInfo struct {
	user.Public
	IsAdmin  bool      `json:"is_admin"`
	LastRead time.Time `json:"last_read"`
}
