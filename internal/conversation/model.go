package conversation

import (
	"time"

	"chat-service/internal/user"
)

type Type string

const (
	TypePrivate Type = "PRIVATE"
	TypeGroup   Type = "GROUP"
)

type Conversation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Type        Type      `gorm:"size:20" json:"type"`
	Name        string    `gorm:"size:200" json:"name,omitempty"`
	Description string    `gorm:"size:500" json:"description,omitempty"`
	Avatar      string    `gorm:"size:512" json:"-"`
	CreatorID   uint      `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Member struct {
	ConversationID uint      `gorm:"primaryKey" json:"conversation_id"`
	UserID         uint      `gorm:"primaryKey" json:"user_id"`
	IsAdmin        bool      `json:"is_admin"`
	LastRead       time.Time `json:"last_read"`
	CreatedAt      time.Time `json:"created_at"`

	User user.User `gorm:"foreignKey:UserID" json:"-"`
}

func (Member) TableName() string { return "conversation_members" }
