package message

import (
	"time"

	"chat-service/internal/conversation"
	"chat-service/internal/user"
)

type SendReq struct {
	Content    string `json:"content"`
	Type       Type   `json:"message_type"`
	Attachment string `json:"attachment"`
}

// View is a message as returned to clients: the raw storage key is
// replaced by a stable relative URL.
type View struct {
	ID             uint        `json:"id"`
	ConversationID uint        `json:"conversation_id"`
	SenderID       uint        `json:"sender_id"`
	Sender         user.Public `json:"sender"`
	Content        string      `json:"content,omitempty"`
	Type           Type        `json:"message_type"`
	AttachmentURL  string      `json:"attachment_url,omitempty"`
	Reactions      []Reaction  `json:"reactions"`
	CreatedAt      time.Time   `json:"created_at"`
}

func viewOf(m *Message) View {
	v := View{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         m.Sender.Public(),
		Content:        m.Content,
		Type:           m.Type,
		Reactions:      m.Reactions,
		CreatedAt:      m.CreatedAt,
	}
	if v.Reactions == nil {
		v.Reactions = []Reaction{}
	}
	if m.Attachment != "" {
		if m.Type == TypeLink {
			// A link message's attachment is the URL itself.
			v.AttachmentURL = m.Attachment
		} else {
			v.AttachmentURL = conversation.AttachmentURL(m.ConversationID, m.ID)
		}
	}
	return v
}

type ReactionSet struct {
	MessageID      uint       `json:"message_id"`
	ConversationID uint       `json:"conversation_id"`
	Reactions      []Reaction `json:"reactions"`
}

type Deleted struct {
	MessageID      uint `json:"message_id"`
	ConversationID uint `json:"conversation_id"`
}
