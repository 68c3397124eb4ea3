package notify

import "time"

// Intent is a persisted notification request. The send path publishes
// one to the queue alongside the message write; the worker consumes it
// and performs delivery, so a crash after the primary write never
// silently drops the notification.
type Intent struct {
	MessageID      uint        `json:"message_id"`
	ConversationID uint        `json:"conversation_id"`
	SenderID       uint        `json:"sender_id"`
	SenderName     string      `json:"sender_name"`
	Text           string      `json:"text"`
	Recipients     []Recipient `json:"recipients"`
	SentAt         time.Time   `json:"sent_at"`
}

type Recipient struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}
