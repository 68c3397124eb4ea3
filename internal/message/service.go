package message

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat-service/internal/apperr"
	"chat-service/internal/conversation"
	"chat-service/internal/notify"
	"chat-service/internal/storage/s3"
	"chat-service/internal/ws"
)

const (
	EventNewMessage      = "chat:new_message"
	EventReactionAdded   = "chat:reaction_added"
	EventReactionRemoved = "chat:reaction_removed"
	EventMessageDeleted  = "chat:message_deleted"
)

const DefaultPageSize = 50

type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type Service interface {
	List(conversationID, userID uint, cursor uint, limit int) ([]View, error)
	SendText(ctx context.Context, conversationID, senderID uint, in SendReq) (*View, error)
	SendFile(ctx context.Context, conversationID, senderID uint, content string, up conversation.Upload, voice bool) (*View, error)

	AddReaction(messageID, userID uint, emoji string) (*ReactionSet, error)
	RemoveReaction(messageID, userID uint, emoji string) (*ReactionSet, error)

	Delete(ctx context.Context, messageID, userID uint) error

	ServeAttachment(ctx context.Context, conversationID, messageID uint) (*s3.Object, *Message, error)
}

type service struct {
	repo  Repository
	convs conversation.Service
	store conversation.ObjectStore
	hub   conversation.Broadcaster
	queue Publisher
}

func NewService(repo Repository, convs conversation.Service, store conversation.ObjectStore, hub conversation.Broadcaster, queue Publisher) Service {
	return &service{repo: repo, convs: convs, store: store, hub: hub, queue: queue}
}

func (s *service) List(conversationID, userID uint, cursor uint, limit int) ([]View, error) {
	if _, err := s.convs.GetMember(conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = DefaultPageSize
	}

	msgs, err := s.repo.ListByConversation(conversationID, cursor, limit)
	if err != nil {
		return nil, err
	}

	// The query runs newest-first for the cursor; flip back to
	// chronological order for the client.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	out := make([]View, 0, len(msgs))
	for i := range msgs {
		out = append(out, viewOf(&msgs[i]))
	}

	// Reading the history counts as catching up; failure here must not
	// fail the fetch.
	go func() {
		if err := s.convs.MarkRead(conversationID, userID); err != nil {
			log.Printf("advance lastRead conversation=%d user=%d: %v", conversationID, userID, err)
		}
	}()

	return out, nil
}

func (s *service) SendText(ctx context.Context, conversationID, senderID uint, in SendReq) (*View, error) {
	if in.Type == "" {
		in.Type = TypeText
	}
	switch in.Type {
	case TypeText:
		if strings.TrimSpace(in.Content) == "" {
			return nil, apperr.InvalidArg("Content is required")
		}
		// Storage keys are minted server-side on upload; accepting one
		// here would let a sender reference another conversation's
		// objects.
		if in.Attachment != "" {
			return nil, apperr.InvalidArg("attachment is not accepted here, upload the file instead")
		}
	case TypeLink:
		if in.Attachment == "" {
			return nil, apperr.InvalidArg("Attachment is required for link messages")
		}
	default:
		return nil, apperr.InvalidArg("unsupported message type for this endpoint")
	}

	if _, err := s.convs.GetMember(conversationID, senderID); err != nil {
		return nil, err
	}

	m := &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        in.Content,
		Type:           in.Type,
		Attachment:     in.Attachment,
	}
	return s.finishSend(ctx, m)
}

func (s *service) SendFile(ctx context.Context, conversationID, senderID uint, content string, up conversation.Upload, voice bool) (*View, error) {
	if up.Body == nil {
		return nil, apperr.InvalidArg("file is required")
	}
	if _, err := s.convs.GetMember(conversationID, senderID); err != nil {
		return nil, err
	}

	key := attachmentKey(conversationID, up.Filename)
	if err := s.store.Put(ctx, key, up.ContentType, up.Body, up.Size); err != nil {
		return nil, fmt.Errorf("store attachment %s: %w", key, err)
	}

	typ := Classify(up.ContentType, content)
	if voice {
		typ = TypeVoice
	}

	m := &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           typ,
		Attachment:     key,
	}
	return s.finishSend(ctx, m)
}

func (s *service) finishSend(ctx context.Context, m *Message) (*View, error) {
	if err := s.repo.Create(m); err != nil {
		return nil, err
	}
	if err := s.convs.Touch(m.ConversationID, time.Now()); err != nil {
		log.Printf("touch conversation=%d: %v", m.ConversationID, err)
	}

	v := viewOf(m)
	s.hub.Emit(ws.ConversationRoom(m.ConversationID), ws.Event{Type: EventNewMessage, Data: v})

	members, err := s.convs.Members(m.ConversationID)
	if err != nil {
		log.Printf("members conversation=%d: %v", m.ConversationID, err)
		return &v, nil
	}

	memberIDs := make([]uint, 0, len(members))
	recipients := make([]notify.Recipient, 0, len(members))
	for _, mem := range members {
		memberIDs = append(memberIDs, mem.UserID)
		if mem.UserID != m.SenderID {
			recipients = append(recipients, notify.Recipient{ID: mem.UserID, Name: mem.User.Name})
		}
	}
	s.hub.EmitToUsers(memberIDs, ws.Event{
		Type: conversation.EventConversationUpdated,
		Data: map[string]any{"conversation_id": m.ConversationID, "last_message": v},
	})

	s.publishIntent(ctx, m, recipients)

	return &v, nil
}

// publishIntent enqueues the push-notification intent. The primary
// write already succeeded; a queue failure is logged, never surfaced.
func (s *service) publishIntent(ctx context.Context, m *Message, recipients []notify.Recipient) {
	if len(recipients) == 0 {
		return
	}
	it := notify.Intent{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.Sender.Name,
		Text:           DecodeContent(m.Content),
		Recipients:     recipients,
		SentAt:         m.CreatedAt,
	}
	payload, err := json.Marshal(it)
	if err != nil {
		log.Printf("marshal intent message=%d: %v", m.ID, err)
		return
	}
	if err := s.queue.Publish(ctx, fmt.Sprintf("%d", m.ConversationID), payload); err != nil {
		log.Printf("publish intent message=%d: %v", m.ID, err)
	}
}

func (s *service) AddReaction(messageID, userID uint, emoji string) (*ReactionSet, error) {
	if emoji == "" {
		return nil, apperr.InvalidArg("emoji is required")
	}
	m, err := s.repo.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.convs.GetMember(m.ConversationID, userID); err != nil {
		return nil, err
	}
	if err := s.repo.UpsertReaction(&Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}); err != nil {
		return nil, err
	}
	return s.broadcastReactions(m, EventReactionAdded)
}

func (s *service) RemoveReaction(messageID, userID uint, emoji string) (*ReactionSet, error) {
	m, err := s.repo.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.convs.GetMember(m.ConversationID, userID); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteReaction(messageID, userID, emoji); err != nil {
		return nil, err
	}
	return s.broadcastReactions(m, EventReactionRemoved)
}

// broadcastReactions re-reads the full reaction set so every client
// reconciles to server truth instead of applying deltas.
func (s *service) broadcastReactions(m *Message, event string) (*ReactionSet, error) {
	reactions, err := s.repo.ReactionsOf(m.ID)
	if err != nil {
		return nil, err
	}
	set := &ReactionSet{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		Reactions:      reactions,
	}
	s.hub.Emit(ws.ConversationRoom(m.ConversationID), ws.Event{Type: event, Data: set})
	return set, nil
}

func (s *service) Delete(ctx context.Context, messageID, userID uint) error {
	m, err := s.repo.GetByID(messageID)
	if err != nil {
		return err
	}
	member, err := s.convs.GetMember(m.ConversationID, userID)
	if err != nil {
		return err
	}
	if m.SenderID != userID && !member.IsAdmin {
		return apperr.Forbidden("only the sender or an admin can delete a message")
	}

	if err := s.repo.DeleteWithReactions(messageID); err != nil {
		return err
	}

	s.hub.Emit(ws.ConversationRoom(m.ConversationID), ws.Event{
		Type: EventMessageDeleted,
		Data: Deleted{MessageID: m.ID, ConversationID: m.ConversationID},
	})

	if m.Attachment != "" && m.Type != TypeLink {
		if err := s.store.Remove(ctx, m.Attachment); err != nil {
			log.Printf("remove object %s: %v", m.Attachment, err)
		}
	}
	return nil
}

func (s *service) ServeAttachment(ctx context.Context, conversationID, messageID uint) (*s3.Object, *Message, error) {
	m, err := s.repo.GetByID(messageID)
	if err != nil {
		return nil, nil, err
	}
	if m.ConversationID != conversationID || m.Attachment == "" || m.Type == TypeLink {
		return nil, nil, apperr.NotFound("attachment not found")
	}
	obj, err := s.store.FetchWithFallback(ctx, m.Attachment)
	if err != nil {
		log.Printf("attachment fetch message=%d key=%s: %v", messageID, m.Attachment, err)
		return nil, nil, apperr.NotFound("attachment not found")
	}
	return obj, m, nil
}

// attachmentKey namespaces objects by conversation and prefixes a
// timestamp+random suffix so identical filenames never collide.
func attachmentKey(conversationID uint, filename string) string {
	name := NormalizeFilename(filename)
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("chat/%d/%d-%s-%s", conversationID, time.Now().UnixNano(), uuid.NewString()[:8], name)
}
