package conversation

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"chat-service/internal/apperr"
	"chat-service/internal/redisx"
	"chat-service/internal/storage/s3"
	"chat-service/internal/user"
	"chat-service/internal/ws"
)

const (
	EventNewConversation     = "chat:new_conversation"
	EventConversationUpdated = "chat:conversation_updated"
)

type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Remove(ctx context.Context, key string) error
	FetchWithFallback(ctx context.Context, key string) (*s3.Object, error)
}

type Broadcaster interface {
	Emit(room string, ev ws.Event)
	EmitToUsers(userIDs []uint, ev ws.Event)
}

type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Service interface {
	List(userID uint) ([]ListItem, error)
	Create(ctx context.Context, creatorID uint, in CreateReq, avatar *Upload) (*Detail, bool, error)
	Get(conversationID, userID uint) (*Detail, error)

	IsMember(conversationID, userID uint) (bool, error)
	Members(conversationID uint) ([]Member, error)
	GetMember(conversationID, userID uint) (*Member, error)

	MarkRead(conversationID, userID uint) error
	Touch(conversationID uint, t time.Time) error
	Leave(conversationID, userID uint) error
	Delete(ctx context.Context, conversationID, userID uint) error

	ServeAvatar(ctx context.Context, conversationID uint) (*s3.Object, error)

	SetTyping(ctx context.Context, conversationID, userID uint) error
	ListTyping(ctx context.Context, conversationID, userID uint) ([]user.Public, error)
}

type service struct {
	repo  Repository
	users user.Repository
	store ObjectStore
	hub   Broadcaster
	rds   *redisx.Client
}

func NewService(r Repository, users user.Repository, store ObjectStore, hub Broadcaster, rds *redisx.Client) Service {
	return &service{repo: r, users: users, store: store, hub: hub, rds: rds}
}

func (s *service) List(userID uint) ([]ListItem, error) {
	convs, err := s.repo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}

	members, err := s.repo.MembersOfAll(ids)
	if err != nil {
		return nil, err
	}
	byConv := make(map[uint][]Member, len(ids))
	for _, m := range members {
		byConv[m.ConversationID] = append(byConv[m.ConversationID], m)
	}

	unread, err := s.repo.UnreadCounts(userID)
	if err != nil {
		return nil, err
	}
	last, err := s.repo.LastMessages(ids)
	if err != nil {
		return nil, err
	}

	out := make([]ListItem, 0, len(convs))
	for _, c := range convs {
		item := ListItem{
			ID:          c.ID,
			Type:        c.Type,
			DisplayName: c.Name,
			Description: c.Description,
			UnreadCount: unread[c.ID],
			UpdatedAt:   c.UpdatedAt,
		}
		if c.Avatar != "" {
			item.AvatarURL = AvatarURL(c.ID)
		}
		for _, m := range byConv[c.ID] {
			item.Members = append(item.Members, m.User.Public())
			// A private chat shows the other party's identity.
			if c.Type == TypePrivate && m.UserID != userID {
				item.DisplayName = m.User.Name
				if m.User.Avatar != "" {
					item.AvatarURL = m.User.Avatar
				}
			}
		}
		if lm, ok := last[c.ID]; ok {
			item.LastMessage = &lm
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, creatorID uint, in CreateReq, avatar *Upload) (*Detail, bool, error) {
	memberIDs := dedupe(in.MemberIDs, creatorID)
	if len(memberIDs) == 0 {
		return nil, false, apperr.InvalidArg("at least one other member is required")
	}

	if in.Type == TypePrivate {
		if len(memberIDs) != 1 {
			return nil, false, apperr.InvalidArg("a private conversation has exactly two members")
		}
		existing, err := s.repo.FindPrivateBetween(creatorID, memberIDs[0])
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			d, err := s.detail(existing, creatorID)
			return d, true, err
		}
	}
	if in.Type == TypeGroup && in.Name == "" {
		return nil, false, apperr.InvalidArg("a group conversation requires a name")
	}

	// Mentioned member ids must exist.
	found, err := s.users.GetByIDs(memberIDs)
	if err != nil {
		return nil, false, err
	}
	if len(found) != len(memberIDs) {
		return nil, false, apperr.InvalidArg("unknown member id")
	}

	c := &Conversation{
		Type:        in.Type,
		Description: in.Description,
		CreatorID:   creatorID,
	}
	if in.Type == TypeGroup {
		c.Name = in.Name
	}

	if avatar != nil {
		key := avatarKey(avatar.Filename)
		if err := s.store.Put(ctx, key, avatar.ContentType, avatar.Body, avatar.Size); err != nil {
			return nil, false, fmt.Errorf("avatar upload: %w", err)
		}
		c.Avatar = key
	}

	members := []Member{{UserID: creatorID, IsAdmin: true, LastRead: time.Now()}}
	for _, id := range memberIDs {
		members = append(members, Member{UserID: id})
	}
	if err := s.repo.Create(c, members); err != nil {
		return nil, false, err
	}

	d, err := s.detail(c, creatorID)
	if err != nil {
		return nil, false, err
	}

	all := append([]uint{creatorID}, memberIDs...)
	s.hub.EmitToUsers(all, ws.Event{Type: EventNewConversation, Data: d})

	return d, false, nil
}

func (s *service) Get(conversationID, userID uint) (*Detail, error) {
	if _, err := s.repo.GetMember(conversationID, userID); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	return s.detail(c, userID)
}

func (s *service) detail(c *Conversation, viewerID uint) (*Detail, error) {
	members, err := s.repo.MembersOf(c.ID)
	if err != nil {
		return nil, err
	}
	d := &Detail{Conversation: *c, DisplayName: c.Name}
	if c.Avatar != "" {
		d.AvatarURL = AvatarURL(c.ID)
	}
	for _, m := range members {
		d.Members = append(d.Members, MemberInfo{
			Public:   m.User.Public(),
			IsAdmin:  m.IsAdmin,
			LastRead: m.LastRead,
		})
		if c.Type == TypePrivate && m.UserID != viewerID {
			d.DisplayName = m.User.Name
			if m.User.Avatar != "" {
				d.AvatarURL = m.User.Avatar
			}
		}
	}
	return d, nil
}

func (s *service) IsMember(conversationID, userID uint) (bool, error) {
	return s.repo.IsMember(conversationID, userID)
}

func (s *service) Members(conversationID uint) ([]Member, error) {
	return s.repo.MembersOf(conversationID)
}

func (s *service) GetMember(conversationID, userID uint) (*Member, error) {
	return s.repo.GetMember(conversationID, userID)
}

func (s *service) MarkRead(conversationID, userID uint) error {
	if _, err := s.repo.GetMember(conversationID, userID); err != nil {
		return err
	}
	return s.repo.AdvanceLastRead(conversationID, userID, time.Now())
}

// Touch bumps the conversation's updated-at so it sorts to the top of
// the listing; called on every new message.
func (s *service) Touch(conversationID uint, t time.Time) error {
	return s.repo.BumpUpdatedAt(conversationID, t)
}

func (s *service) Leave(conversationID, userID uint) error {
	if _, err := s.repo.GetMember(conversationID, userID); err != nil {
		return err
	}
	return s.repo.RemoveMember(conversationID, userID)
}

func (s *service) Delete(ctx context.Context, conversationID, userID uint) error {
	c, err := s.repo.GetByID(conversationID)
	if err != nil {
		return err
	}
	m, err := s.repo.GetMember(conversationID, userID)
	if err != nil {
		return err
	}
	if c.Type == TypeGroup && !m.IsAdmin {
		return apperr.Forbidden("only an admin can delete a group conversation")
	}

	keys, err := s.repo.AttachmentKeys(conversationID)
	if err != nil {
		return err
	}
	if c.Avatar != "" {
		keys = append(keys, c.Avatar)
	}

	if err := s.repo.Delete(conversationID); err != nil {
		return err
	}

	// Stored objects are removed best-effort; residual orphans are left
	// to the bucket lifecycle policy.
	for _, key := range keys {
		if err := s.store.Remove(ctx, key); err != nil {
			log.Printf("remove object %s: %v", key, err)
		}
	}
	return nil
}

func (s *service) ServeAvatar(ctx context.Context, conversationID uint) (*s3.Object, error) {
	c, err := s.repo.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if c.Avatar == "" {
		return nil, apperr.NotFound("conversation has no avatar")
	}
	obj, err := s.store.FetchWithFallback(ctx, c.Avatar)
	if err != nil {
		log.Printf("avatar fetch conversation=%d key=%s: %v", conversationID, c.Avatar, err)
		return nil, apperr.NotFound("avatar not found")
	}
	return obj, nil
}

func (s *service) SetTyping(ctx context.Context, conversationID, userID uint) error {
	if _, err := s.repo.GetMember(conversationID, userID); err != nil {
		return err
	}
	return s.rds.SetTyping(ctx, conversationID, userID)
}

func (s *service) ListTyping(ctx context.Context, conversationID, userID uint) ([]user.Public, error) {
	members, err := s.repo.MembersOf(conversationID)
	if err != nil {
		return nil, err
	}
	var ok bool
	for _, m := range members {
		if m.UserID == userID {
			ok = true
		}
	}
	if !ok {
		return nil, apperr.Forbidden("Access denied")
	}

	typing := []user.Public{}
	for _, m := range members {
		if m.UserID == userID {
			continue
		}
		if s.rds.IsTyping(ctx, conversationID, m.UserID) {
			typing = append(typing, m.User.Public())
		}
	}
	return typing, nil
}

// avatarKey renames the upload with a timestamp+random suffix so
// concurrent uploads of the same filename never collide.
func avatarKey(filename string) string {
	ext := filepath.Ext(filename)
	return fmt.Sprintf("chat-avatars/%d-%s%s", time.Now().UnixNano(), uuid.NewString()[:8], ext)
}

func dedupe(ids []uint, exclude uint) []uint {
	seen := map[uint]struct{}{exclude: {}}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
