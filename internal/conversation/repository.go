package conversation

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"chat-service/internal/apperr"
	"chat-service/internal/shared/db"
)

type Repository interface {
	Create(c *Conversation, members []Member) error
	GetByID(id uint) (*Conversation, error)
	FindPrivateBetween(a, b uint) (*Conversation, error)
	ListByUser(userID uint) ([]Conversation, error)

	MembersOf(conversationID uint) ([]Member, error)
	MembersOfAll(conversationIDs []uint) ([]Member, error)
	GetMember(conversationID, userID uint) (*Member, error)
	IsMember(conversationID, userID uint) (bool, error)
	RemoveMember(conversationID, userID uint) error

	AdvanceLastRead(conversationID, userID uint, t time.Time) error
	UnreadCounts(userID uint) (map[uint]int64, error)
	LastMessages(conversationIDs []uint) (map[uint]LastMessage, error)
	BumpUpdatedAt(conversationID uint, t time.Time) error

	AttachmentKeys(conversationID uint) ([]string, error)
	Delete(conversationID uint) error
}

type repo struct{ store *db.Store }

func NewRepository(s *db.Store) Repository { return &repo{store: s} }

func (r *repo) Create(c *Conversation, members []Member) error {
	return r.store.Base.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		for i := range members {
			members[i].ConversationID = c.ID
		}
		return tx.Create(&members).Error
	})
}

func (r *repo) GetByID(id uint) (*Conversation, error) {
	var c Conversation
	if err := r.store.Base.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("conversation not found")
		}
		return nil, err
	}
	return &c, nil
}

// FindPrivateBetween looks for an existing two-party conversation with
// exactly these members. The double join narrows candidates; the member
// count check rules out group chats that happen to contain both users.
func (r *repo) FindPrivateBetween(a, b uint) (*Conversation, error) {
	var c Conversation
	err := r.store.Base.
		Joins("JOIN conversation_members m1 ON m1.conversation_id = conversations.id AND m1.user_id = ?", a).
		Joins("JOIN conversation_members m2 ON m2.conversation_id = conversations.id AND m2.user_id = ?", b).
		Where("conversations.type = ?", TypePrivate).
		Where("(SELECT COUNT(*) FROM conversation_members cm WHERE cm.conversation_id = conversations.id) = 2").
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *repo) ListByUser(userID uint) ([]Conversation, error) {
	var out []Conversation
	err := r.store.Base.
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id AND cm.user_id = ?", userID).
		Order("conversations.updated_at DESC").
		Find(&out).Error
	return out, err
}

func (r *repo) MembersOf(conversationID uint) ([]Member, error) {
	var out []Member
	err := r.store.Base.
		Where("conversation_id = ?", conversationID).
		Preload("User").
		Find(&out).Error
	return out, err
}

func (r *repo) MembersOfAll(conversationIDs []uint) ([]Member, error) {
	var out []Member
	if len(conversationIDs) == 0 {
		return out, nil
	}
	err := r.store.Base.
		Where("conversation_id IN ?", conversationIDs).
		Preload("User").
		Find(&out).Error
	return out, err
}

func (r *repo) GetMember(conversationID, userID uint) (*Member, error) {
	var m Member
	err := r.store.Base.
		First(&m, "conversation_id = ? AND user_id = ?", conversationID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Forbidden("Access denied")
		}
		return nil, err
	}
	return &m, nil
}

func (r *repo) IsMember(conversationID, userID uint) (bool, error) {
	var n int64
	err := r.store.Base.Model(&Member{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *repo) RemoveMember(conversationID, userID uint) error {
	return r.store.Base.
		Delete(&Member{}, "conversation_id = ? AND user_id = ?", conversationID, userID).Error
}

// AdvanceLastRead only ever moves the marker forward.
func (r *repo) AdvanceLastRead(conversationID, userID uint, t time.Time) error {
	return r.store.Base.Model(&Member{}).
		Where("conversation_id = ? AND user_id = ? AND last_read < ?", conversationID, userID, t).
		Update("last_read", t).Error
}

type unreadRow struct {
	ConversationID uint
	Count          int64
}

// UnreadCounts computes the unread count for every conversation the
// user belongs to in one grouped query.
func (r *repo) UnreadCounts(userID uint) (map[uint]int64, error) {
	var rows []unreadRow
	err := r.store.Base.Table("messages").
		Select("messages.conversation_id AS conversation_id, COUNT(*) AS count").
		Joins("JOIN conversation_members m ON m.conversation_id = messages.conversation_id AND m.user_id = ?", userID).
		Where("messages.sender_id <> ?", userID).
		Where("messages.created_at > m.last_read").
		Group("messages.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, row := range rows {
		out[row.ConversationID] = row.Count
	}
	return out, nil
}

type lastMessageRow struct {
	ID             uint
	ConversationID uint
	SenderID       uint
	Content        string
	Type           string
	Attachment     string
	CreatedAt      time.Time
}

func (r *repo) LastMessages(conversationIDs []uint) (map[uint]LastMessage, error) {
	out := make(map[uint]LastMessage)
	if len(conversationIDs) == 0 {
		return out, nil
	}
	sub := r.store.Base.Table("messages").
		Select("MAX(id)").
		Where("conversation_id IN ?", conversationIDs).
		Group("conversation_id")

	var rows []lastMessageRow
	err := r.store.Base.Table("messages").
		Select("id, conversation_id, sender_id, content, type, attachment, created_at").
		Where("id IN (?)", sub).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		lm := LastMessage{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			SenderID:       row.SenderID,
			Content:        row.Content,
			Type:           row.Type,
			CreatedAt:      row.CreatedAt,
		}
		if row.Attachment != "" {
			if row.Type == "LINK" {
				lm.AttachmentURL = row.Attachment
			} else {
				lm.AttachmentURL = AttachmentURL(row.ConversationID, row.ID)
			}
		}
		out[row.ConversationID] = lm
	}
	return out, nil
}

func (r *repo) BumpUpdatedAt(conversationID uint, t time.Time) error {
	return r.store.Base.Model(&Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", t).Error
}

// AttachmentKeys lists the storage keys of a conversation's uploads.
// LINK messages store a URL in the attachment column, not an object
// key, so they are excluded.
func (r *repo) AttachmentKeys(conversationID uint) ([]string, error) {
	var keys []string
	err := r.store.Base.Table("messages").
		Where("conversation_id = ? AND attachment <> '' AND type <> ?", conversationID, "LINK").
		Pluck("attachment", &keys).Error
	return keys, err
}

// Delete cascades in dependency order: reactions, messages, members,
// then the conversation row.
func (r *repo) Delete(conversationID uint) error {
	return r.store.Base.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM message_reactions WHERE message_id IN (SELECT id FROM messages WHERE conversation_id = ?)",
			conversationID,
		).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", conversationID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Member{}, "conversation_id = ?", conversationID).Error; err != nil {
			return err
		}
		return tx.Delete(&Conversation{}, "id = ?", conversationID).Error
	})
}
