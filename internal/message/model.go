package message

import (
	"time"

	"chat-service/internal/user"
)

type Type string

const (
	TypeText         Type = "TEXT"
	TypeImage        Type = "IMAGE"
	TypeFile         Type = "FILE"
	TypeVoice        Type = "VOICE"
	TypeTextWithFile Type = "TEXT_WITH_FILE"
	TypeLink         Type = "LINK"
)

type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"index" json:"conversation_id"`
	SenderID       uint      `json:"sender_id"`
	Content        string    `gorm:"type:text" json:"content,omitempty"`
	Type           Type      `gorm:"size:20" json:"message_type"`
	Attachment     string    `gorm:"size:512" json:"-"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`

	Sender    user.User  `gorm:"foreignKey:SenderID" json:"sender"`
	Reactions []Reaction `gorm:"foreignKey:MessageID" json:"reactions"`
}

type Reaction struct {
	MessageID uint      `gorm:"primaryKey" json:"message_id"`
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	Emoji     string    `gorm:"primaryKey;size:32" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

func (Reaction) TableName() string { return "message_reactions" }
