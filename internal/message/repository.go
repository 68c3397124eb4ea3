package message

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat-service/internal/apperr"
	"chat-service/internal/shared/db"
)

type Repository interface {
	Create(m *Message) error
	GetByID(id uint) (*Message, error)
	ListByConversation(conversationID uint, cursor uint, limit int) ([]Message, error)
	DeleteWithReactions(id uint) error

	UpsertReaction(r *Reaction) error
	DeleteReaction(messageID, userID uint, emoji string) error
	ReactionsOf(messageID uint) ([]Reaction, error)
}

type repo struct{ store *db.Store }

func NewRepository(s *db.Store) Repository { return &repo{store: s} }

func (r *repo) Create(m *Message) error {
	if err := r.store.Base.Create(m).Error; err != nil {
		return err
	}
	// Reload with the sender attached for broadcast payloads.
	return r.store.Base.Preload("Sender").First(m, m.ID).Error
}

func (r *repo) GetByID(id uint) (*Message, error) {
	var m Message
	err := r.store.Base.
		Preload("Sender").
		Preload("Reactions").
		First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("message not found")
		}
		return nil, err
	}
	return &m, nil
}

func (r *repo) ListByConversation(conversationID uint, cursor uint, limit int) ([]Message, error) {
	q := r.store.Base.
		Where("conversation_id = ?", conversationID).
		Preload("Sender").
		Preload("Reactions").
		Order("id DESC").
		Limit(limit)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var out []Message
	err := q.Find(&out).Error
	return out, err
}

// DeleteWithReactions removes the reactions first to keep referential
// integrity without DB-level cascades.
func (r *repo) DeleteWithReactions(id uint) error {
	return r.store.Base.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Reaction{}, "message_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&Message{}, "id = ?", id).Error
	})
}

// UpsertReaction is idempotent: re-applying the same (message, user,
// emoji) triple is a no-op thanks to the composite key conflict clause.
func (r *repo) UpsertReaction(re *Reaction) error {
	return r.store.Base.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "message_id"}, {Name: "user_id"}, {Name: "emoji"},
		},
		DoNothing: true,
	}).Create(re).Error
}

func (r *repo) DeleteReaction(messageID, userID uint, emoji string) error {
	return r.store.Base.
		Delete(&Reaction{}, "message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).Error
}

func (r *repo) ReactionsOf(messageID uint) ([]Reaction, error) {
	out := []Reaction{}
	err := r.store.Base.
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
